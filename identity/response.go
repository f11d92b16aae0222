package identity

import (
	"encoding/json"
	"strings"

	"github.com/lborres/vouch/core"
)

type responseKind int

const (
	responseEmpty responseKind = iota
	responseInline
	responseFileList
)

// fetchResponse is the documents endpoint reply decoded into exactly one of
// its three shapes: inline data, a file list, or nothing yet.
type fetchResponse struct {
	kind    responseKind
	inline  inlineAadhaar
	fileURL string
}

type inlineAadhaar struct {
	Name    string `json:"name"`
	DOB     string `json:"dob"`
	Gender  string `json:"gender"`
	Address struct {
		House   string `json:"house"`
		Dist    string `json:"dist"`
		State   string `json:"state"`
		Pincode string `json:"pc"`
	} `json:"address"`
}

func (a inlineAadhaar) record() (core.IdentityRecord, error) {
	if strings.TrimSpace(a.Name) == "" {
		return core.IdentityRecord{}, errMissingName
	}
	return core.IdentityRecord{
		Name:        a.Name,
		DateOfBirth: a.DOB,
		Gender:      a.Gender,
		Address: core.Address{
			House:    a.Address.House,
			District: a.Address.Dist,
			State:    a.Address.State,
			Pincode:  a.Address.Pincode,
		},
	}, nil
}

// decodeFetchResponse checks inline data first, then the file list. An empty
// body is a pending session.
func decodeFetchResponse(body []byte) (fetchResponse, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return fetchResponse{kind: responseEmpty}, nil
	}

	var env struct {
		Data struct {
			AadhaarData *inlineAadhaar `json:"aadhaar_data"`
			Files       []struct {
				URL string `json:"url"`
			} `json:"files"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return fetchResponse{}, err
	}

	switch {
	case env.Data.AadhaarData != nil:
		return fetchResponse{kind: responseInline, inline: *env.Data.AadhaarData}, nil
	case len(env.Data.Files) > 0 && env.Data.Files[0].URL != "":
		return fetchResponse{kind: responseFileList, fileURL: env.Data.Files[0].URL}, nil
	default:
		return fetchResponse{kind: responseEmpty}, nil
	}
}
