package ports

import "context"

// Tag annotates an uploaded receipt for later discovery.
type Tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Receipt points at an immutable, content-addressed copy of a payload.
type Receipt struct {
	ID         string `json:"id"`
	GatewayURL string `json:"gatewayUrl,omitempty"`
}

// Receipts is the audit-trail collaborator. Uploads are best effort and
// never gate game logic: a failed upload costs the audit record, nothing else.
type Receipts interface {
	UploadJSON(ctx context.Context, payload any, tags []Tag) (Receipt, error)
}
