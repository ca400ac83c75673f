package photos

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/pairspace/pairspace-backend/pkg/config"
	pkgerrors "github.com/pairspace/pairspace-backend/pkg/errors"
)

// UploadSignature is a short-lived credential the client presents to the
// media CDN when uploading directly.
type UploadSignature struct {
	Signature string `json:"signature"`
	Timestamp int64  `json:"timestamp"`
	KeyID     string `json:"keyId"`
	Folder    string `json:"folder"`
}

// Signer mints direct-upload signatures.
type Signer struct {
	cfg config.MediaConfig
	now func() time.Time
}

// NewSigner builds a signer from the media configuration.
func NewSigner(cfg config.MediaConfig) (*Signer, error) {
	if cfg.UploadSigningSecret == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "media signing secret required")
	}
	return &Signer{cfg: cfg, now: time.Now}, nil
}

// Sign produces the HMAC-SHA256 signature over the upload parameters.
func (s *Signer) Sign() UploadSignature {
	ts := s.now().UTC().Unix()
	payload := fmt.Sprintf("folder=%s&timestamp=%d", s.cfg.UploadFolder, ts)

	mac := hmac.New(sha256.New, []byte(s.cfg.UploadSigningSecret))
	mac.Write([]byte(payload))

	return UploadSignature{
		Signature: hex.EncodeToString(mac.Sum(nil)),
		Timestamp: ts,
		KeyID:     s.cfg.UploadKeyID,
		Folder:    s.cfg.UploadFolder,
	}
}

// Verify checks a signature produced by Sign for the given timestamp.
func (s *Signer) Verify(signature string, ts int64) bool {
	payload := fmt.Sprintf("folder=%s&timestamp=%d", s.cfg.UploadFolder, ts)
	mac := hmac.New(sha256.New, []byte(s.cfg.UploadSigningSecret))
	mac.Write([]byte(payload))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
