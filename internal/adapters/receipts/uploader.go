package receipts

// uploader.go — content-addressed audit trail.
//
// Bets and settlement records are mirrored to an Irys-style bundler node:
// the node stores the JSON payload permanently and answers with a content
// id that anyone can fetch back through the public gateway. The game never
// reads these back; they exist so players can prove what they bet and when.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kosaiyno/iryspredict/internal/ports"
)

const (
	defaultGateway = "https://gateway.irys.xyz"
	uploadTimeout  = 15 * time.Second
)

// Uploader posts JSON payloads to a bundler node.
type Uploader struct {
	http    *http.Client
	nodeURL string
	gateway string
}

var _ ports.Receipts = (*Uploader)(nil)

// NewUploader creates an uploader for the node at nodeURL. gatewayURL may be
// empty to use the public gateway.
func NewUploader(nodeURL, gatewayURL string) (*Uploader, error) {
	if nodeURL == "" {
		return nil, fmt.Errorf("receipts.NewUploader: node URL is required")
	}
	if gatewayURL == "" {
		gatewayURL = defaultGateway
	}
	return &Uploader{
		http:    &http.Client{Timeout: uploadTimeout},
		nodeURL: strings.TrimRight(nodeURL, "/"),
		gateway: strings.TrimRight(gatewayURL, "/"),
	}, nil
}

// UploadJSON stores payload with the given tags and returns its content id.
func (u *Uploader) UploadJSON(ctx context.Context, payload any, tags []ports.Tag) (ports.Receipt, error) {
	body, err := json.Marshal(struct {
		Data any         `json:"data"`
		Tags []ports.Tag `json:"tags,omitempty"`
	}{Data: payload, Tags: tags})
	if err != nil {
		return ports.Receipt{}, fmt.Errorf("receipts: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.nodeURL+"/upload", bytes.NewReader(body))
	if err != nil {
		return ports.Receipt{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := u.http.Do(req)
	if err != nil {
		return ports.Receipt{}, fmt.Errorf("receipts: upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		return ports.Receipt{}, fmt.Errorf("receipts: upload status %d: %s", resp.StatusCode, string(b))
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ports.Receipt{}, fmt.Errorf("receipts: decode response: %w", err)
	}
	if out.ID == "" {
		return ports.Receipt{}, fmt.Errorf("receipts: node returned no id")
	}
	return ports.Receipt{ID: out.ID, GatewayURL: u.gateway + "/" + out.ID}, nil
}

// Local is a stand-in receipt source for deployments without a bundler
// node: ids are random, nothing is stored. Keeps the bet path identical in
// development.
type Local struct{}

var _ ports.Receipts = Local{}

// NewLocal returns the stand-in receipt source.
func NewLocal() Local { return Local{} }

// UploadJSON returns a fresh random id without storing anything.
func (Local) UploadJSON(_ context.Context, _ any, _ []ports.Tag) (ports.Receipt, error) {
	return ports.Receipt{ID: "local-" + uuid.NewString()}, nil
}
