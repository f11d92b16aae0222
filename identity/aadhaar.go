package identity

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/lborres/vouch/core"
)

// Parse failures carry stable messages only. Nothing from the document
// itself ends up in an error or a log line.
var (
	errMalformedDocument = fmt.Errorf("%w: malformed identity document", core.ErrParse)
	errMissingPoi        = fmt.Errorf("%w: identity proof section missing", core.ErrParse)
	errMissingName       = fmt.Errorf("%w: identity proof has no name", core.ErrParse)
)

const (
	elementPoi = "Poi"
	elementPoa = "Poa"
)

// ParseAadhaarXML extracts an IdentityRecord from an Aadhaar XML document.
// The first Poi (proof of identity) element at any depth is required and must
// carry a name. The first Poa (proof of address) element is optional; without
// it every address field is empty.
//
// The whole document is read, so trailing garbage or unclosed elements make
// it fail with core.ErrParse.
func ParseAadhaarXML(raw []byte) (core.IdentityRecord, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.Strict = true

	var poi, poa map[string]string
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return core.IdentityRecord{}, errMalformedDocument
		}

		el, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch {
		case el.Name.Local == elementPoi && poi == nil:
			poi = attrs(el)
		case el.Name.Local == elementPoa && poa == nil:
			poa = attrs(el)
		}
	}

	if poi == nil {
		return core.IdentityRecord{}, errMissingPoi
	}
	name := strings.TrimSpace(poi["name"])
	if name == "" {
		return core.IdentityRecord{}, errMissingName
	}

	// a nil poa reads as empty strings
	return core.IdentityRecord{
		Name:        name,
		DateOfBirth: poi["dob"],
		Gender:      poi["gender"],
		Address: core.Address{
			House:    poa["house"],
			District: poa["dist"],
			State:    poa["state"],
			Pincode:  poa["pc"],
		},
	}, nil
}

func attrs(el xml.StartElement) map[string]string {
	m := make(map[string]string, len(el.Attr))
	for _, a := range el.Attr {
		if _, seen := m[a.Name.Local]; !seen {
			m[a.Name.Local] = a.Value
		}
	}
	return m
}
