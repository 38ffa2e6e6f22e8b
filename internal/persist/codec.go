package persist

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/PiperEve/BlueGhost/internal/model"
	"github.com/PiperEve/BlueGhost/internal/rewind"
)

// Document names.
const (
	DocContent = "content"
	DocRewind  = "rewind"
)

// FormatVersion is the envelope version written by this package.
const FormatVersion = 1

// ErrNoDocument is returned by Backend.Load when the document was never saved.
var ErrNoDocument = errors.New("document not found")

// ErrCorrupt is returned when an envelope fails its digest check.
var ErrCorrupt = errors.New("document digest mismatch")

// envelope wraps a document body.
type envelope struct {
	Version int             `json:"version"`
	Kind    string          `json:"kind"`
	Digest  string          `json:"digest"`
	Data    json.RawMessage `json:"data"`
}

// digest computes SHA256(domain + 0x00 + data). The separator keeps the
// domain and body from running together.
func digest(kind string, data []byte) string {
	h := sha256.New()
	h.Write([]byte("blueghost/" + kind + "/v1"))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// marshal encodes v without HTML escaping so text payloads round-trip
// byte for byte.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func encode(kind string, v any) ([]byte, error) {
	data, err := marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", kind, err)
	}
	out, err := marshal(envelope{
		Version: FormatVersion,
		Kind:    kind,
		Digest:  digest(kind, data),
		Data:    data,
	})
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", kind, err)
	}
	return out, nil
}

func decode(kind string, raw []byte, v any) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode %s envelope: %w", kind, err)
	}
	if env.Version != FormatVersion {
		return fmt.Errorf("decode %s: unsupported version %d", kind, env.Version)
	}
	if env.Kind != kind {
		return fmt.Errorf("decode %s: document holds %q", kind, env.Kind)
	}
	if digest(kind, env.Data) != env.Digest {
		return fmt.Errorf("decode %s: %w", kind, ErrCorrupt)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("decode %s: %w", kind, err)
	}
	return nil
}

// EncodeContent serialises the content state.
func EncodeContent(s model.ContentState) ([]byte, error) {
	return encode(DocContent, s)
}

// DecodeContent parses a content document. Nil maps are initialised.
func DecodeContent(raw []byte) (model.ContentState, error) {
	s := model.NewContentState()
	if err := decode(DocContent, raw, &s); err != nil {
		return model.ContentState{}, err
	}
	if s.Posts == nil {
		s.Posts = make(map[string]model.Post)
	}
	if s.Battles == nil {
		s.Battles = make(map[string]model.Battle)
	}
	return s, nil
}

// EncodeRewind serialises the ledger state.
func EncodeRewind(s rewind.State) ([]byte, error) {
	return encode(DocRewind, s)
}

// DecodeRewind parses a rewind document.
func DecodeRewind(raw []byte) (rewind.State, error) {
	s := rewind.NewState()
	if err := decode(DocRewind, raw, &s); err != nil {
		return rewind.State{}, err
	}
	if s.Accounts == nil {
		s.Accounts = make(map[string]rewind.Account)
	}
	return s, nil
}
