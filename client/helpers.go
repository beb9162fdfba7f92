package client

import "context"

// LOADocumentBundle returns the live "Letter of Authority" document bundle,
// or nil when there is none.
func (c *Client) LOADocumentBundle(ctx context.Context) (*Object, error) {
	bundles, err := c.DocumentBundles.List(ctx, Query{})
	if err != nil {
		return nil, err
	}
	for _, b := range bundles {
		data, err := b.Data(ctx)
		if err != nil {
			return nil, err
		}
		if data["submission_type"] == "Letter of Authority" && data["status"] == "LIVE" {
			return b, nil
		}
	}
	return nil, nil
}

// UploadedLOADocument returns the first document in a submission's
// submission_documents whose type.key is "loa", or nil.
func UploadedLOADocument(submission map[string]interface{}) map[string]interface{} {
	docs, _ := submission["submission_documents"].([]interface{})
	for _, d := range docs {
		doc, ok := d.(map[string]interface{})
		if !ok {
			continue
		}
		typ, _ := doc["type"].(map[string]interface{})
		if typ != nil && typ["key"] == "loa" {
			return doc
		}
	}
	return nil
}
