// Package codec decodes transfers submitted over the API and encodes the
// records the operator persists.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"

	"github.com/fxamacker/cbor/v2"

	"rollupd/internal/tx"
)

const (
	ContentTypeJSON = "application/json"
	ContentTypeCBOR = "application/cbor"
)

var ErrUnsupportedContentType = errors.New("unsupported content type")

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{DupMapKey: cbor.DupMapKeyEnforcedAPF}.DecMode()
	if err != nil {
		panic(err)
	}
}

// Marshal encodes v as canonical CBOR.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR, rejecting duplicate map keys.
func Unmarshal(b []byte, v any) error {
	return decMode.Unmarshal(b, v)
}

// DecodeJSON strips a leading UTF-8 BOM before parsing.
func DecodeJSON(b []byte, out *tx.Signed) error {
	if len(b) >= 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		b = b[3:]
	}
	return json.Unmarshal(b, out)
}

func DecodeCBOR(b []byte, out *tx.Signed) error {
	return Unmarshal(b, out)
}

// DecodeTransfer picks the decoder from the request content type. An empty
// content type is read as JSON.
func DecodeTransfer(contentType string, body []byte) (tx.Signed, error) {
	mt := ContentTypeJSON
	if contentType != "" {
		var err error
		mt, _, err = mime.ParseMediaType(contentType)
		if err != nil {
			return tx.Signed{}, fmt.Errorf("%w: %v", ErrUnsupportedContentType, err)
		}
	}
	var (
		s   tx.Signed
		err error
	)
	switch mt {
	case ContentTypeJSON:
		err = DecodeJSON(body, &s)
	case ContentTypeCBOR:
		err = DecodeCBOR(body, &s)
	default:
		return tx.Signed{}, fmt.Errorf("%w: %s", ErrUnsupportedContentType, mt)
	}
	if err != nil {
		return tx.Signed{}, fmt.Errorf("decode %s: %w", mt, err)
	}
	if err := s.Normalize(); err != nil {
		return tx.Signed{}, err
	}
	return s, nil
}
