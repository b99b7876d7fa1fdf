package store

import (
	"encoding/json"
	"fmt"
	"strings"
)

// registry maps every tag to a constructor for its concrete type.
var registry = map[DocType]func() Document{
	TypeUser:     func() Document { return &User{} },
	TypeProject:  func() Document { return &Project{} },
	TypeProgress: func() Document { return &ProgressUpdate{} },
	TypePayment:  func() Document { return &PaymentRequest{} },
	TypeVehicle:  func() Document { return &Vehicle{} },
	TypeDriver:   func() Document { return &Driver{} },
}

// Encode returns the key, tag and JSON body for doc.
func Encode(doc Document) (string, DocType, []byte, error) {
	t := doc.DocType()
	if _, ok := registry[t]; !ok {
		return "", "", nil, fmt.Errorf("encode: unknown document type %q", t)
	}
	key := doc.DocKey()
	if key == "" || strings.HasSuffix(key, "::") {
		return "", "", nil, fmt.Errorf("encode %s: empty id", t)
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return "", "", nil, fmt.Errorf("encode %s: %w", key, err)
	}
	return key, t, body, nil
}

// Decode builds the concrete document for tag t from body.
func Decode(t DocType, body []byte, version int64) (Document, error) {
	newDoc, ok := registry[t]
	if !ok {
		return nil, fmt.Errorf("decode: unknown document type %q", t)
	}
	doc := newDoc()
	if err := json.Unmarshal(body, doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", t, err)
	}
	if v, ok := doc.(versioned); ok {
		v.setVersion(version)
	}
	return doc, nil
}
