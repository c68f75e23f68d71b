package draft

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/sehansi-9/gztprocessor/internal/roster"
)

// savedOrg is the free-form document stored by the draft-persistence endpoint
// for organizational gazettes. Moves holds move annotations for initial drafts
// and amendment moves otherwise.
type savedOrg struct {
	Transactions json.RawMessage       `json:"transactions"`
	Moves        json.RawMessage       `json:"moves"`
	Adds         []roster.OrgAdd       `json:"adds"`
	Terminates   []roster.OrgTerminate `json:"terminates"`
}

type savedPersonnel struct {
	Moves      []roster.PersonMove      `json:"moves"`
	Adds       []roster.PersonAdd       `json:"adds"`
	Terminates []roster.PersonTerminate `json:"terminates"`
}

// Encode renders d as the body of the draft-persistence endpoint.
func Encode(d Draft) ([]byte, error) {
	switch v := d.(type) {
	case *Initial:
		return json.Marshal(map[string]any{
			"transactions": nonNil(v.Ministers),
			"moves":        nonNil(v.Moves),
			"adds":         []roster.OrgAdd{},
			"terminates":   []roster.OrgTerminate{},
		})
	case *Amendment:
		return json.Marshal(map[string]any{
			"transactions": []roster.Minister{},
			"moves":        nonNil(v.Moves),
			"adds":         nonNil(v.Adds),
			"terminates":   nonNil(v.Terminates),
		})
	case *Personnel:
		return json.Marshal(savedPersonnel{
			Moves:      nonNil(v.Moves),
			Adds:       nonNil(v.Adds),
			Terminates: nonNil(v.Terminates),
		})
	}
	return nil, errors.Errorf("encode draft: unsupported draft %T", d)
}

// Decode reads a stored draft of the given kind. The document may arrive as a
// JSON string holding the JSON object; null or empty input yields an empty draft.
func Decode(kind Kind, data []byte) (Draft, error) {
	data, err := unwrapString(data)
	if err != nil {
		return nil, err
	}
	if isNull(data) {
		return New(kind), nil
	}

	switch kind {
	case KindInitial:
		var doc savedOrg
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, errors.Wrap(err, "decode initial draft")
		}
		out := &Initial{Ministers: []roster.Minister{}, Moves: []roster.MoveAnnotation{}}
		if err := decodeList(doc.Transactions, &out.Ministers); err != nil {
			return nil, errors.Wrap(err, "decode initial draft ministers")
		}
		if err := decodeList(doc.Moves, &out.Moves); err != nil {
			return nil, errors.Wrap(err, "decode initial draft moves")
		}
		return Normalize(out), nil

	case KindAmendment:
		var doc savedOrg
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, errors.Wrap(err, "decode amendment draft")
		}
		out := &Amendment{Adds: nonNil(doc.Adds), Moves: []roster.OrgMove{}, Terminates: nonNil(doc.Terminates)}
		if err := decodeList(doc.Moves, &out.Moves); err != nil {
			return nil, errors.Wrap(err, "decode amendment draft moves")
		}
		return out, nil

	case KindPersonnel:
		var doc savedPersonnel
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, errors.Wrap(err, "decode personnel draft")
		}
		return &Personnel{Adds: fillSuggestions(doc.Adds), Moves: nonNil(doc.Moves), Terminates: nonNil(doc.Terminates)}, nil
	}
	return nil, errors.Errorf("decode draft: unknown kind %q", kind)
}

// DecodeRaw reads the machine-extracted transactions for a gazette. Initial
// gazettes arrive as a minister list, either bare or under "transactions";
// amendment and personnel gazettes arrive as {transactions:{adds,moves,terminates}}.
func DecodeRaw(kind Kind, data []byte) (Draft, error) {
	data, err := unwrapString(data)
	if err != nil {
		return nil, err
	}
	if isNull(data) {
		return New(kind), nil
	}

	if kind == KindInitial {
		out := &Initial{Ministers: []roster.Minister{}, Moves: []roster.MoveAnnotation{}}
		if bytes.HasPrefix(bytes.TrimSpace(data), []byte("[")) {
			if err := json.Unmarshal(data, &out.Ministers); err != nil {
				return nil, errors.Wrap(err, "decode initial transactions")
			}
			return Normalize(out), nil
		}
		var wrapped struct {
			Transactions []roster.Minister `json:"transactions"`
			Ministers    []roster.Minister `json:"ministers"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, errors.Wrap(err, "decode initial transactions")
		}
		switch {
		case wrapped.Transactions != nil:
			out.Ministers = wrapped.Transactions
		case wrapped.Ministers != nil:
			out.Ministers = wrapped.Ministers
		}
		return Normalize(out), nil
	}

	var envelope struct {
		Transactions json.RawMessage `json:"transactions"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, errors.Wrap(err, "decode transactions envelope")
	}
	if isNull(envelope.Transactions) {
		return New(kind), nil
	}
	if kind == KindPersonnel {
		var doc savedPersonnel
		if err := json.Unmarshal(envelope.Transactions, &doc); err != nil {
			return nil, errors.Wrap(err, "decode personnel transactions")
		}
		return &Personnel{Adds: fillSuggestions(doc.Adds), Moves: nonNil(doc.Moves), Terminates: nonNil(doc.Terminates)}, nil
	}
	var doc struct {
		Adds       []roster.OrgAdd       `json:"adds"`
		Moves      []roster.OrgMove      `json:"moves"`
		Terminates []roster.OrgTerminate `json:"terminates"`
	}
	if err := json.Unmarshal(envelope.Transactions, &doc); err != nil {
		return nil, errors.Wrap(err, "decode amendment transactions")
	}
	return &Amendment{Adds: nonNil(doc.Adds), Moves: nonNil(doc.Moves), Terminates: nonNil(doc.Terminates)}, nil
}

func unwrapString(data []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(data)
	if !bytes.HasPrefix(trimmed, []byte(`"`)) {
		return trimmed, nil
	}
	var inner string
	if err := json.Unmarshal(trimmed, &inner); err != nil {
		return nil, errors.Wrap(err, "decode string-encoded draft")
	}
	return bytes.TrimSpace([]byte(inner)), nil
}

func isNull(data []byte) bool {
	return len(data) == 0 || bytes.Equal(data, []byte("null")) || bytes.Equal(data, []byte("{}"))
}

// decodeList tolerates absent or non-array values, which older drafts store
// under the same keys.
func decodeList[T any](raw json.RawMessage, target *[]T) error {
	trimmed := bytes.TrimSpace(raw)
	if !bytes.HasPrefix(trimmed, []byte("[")) {
		return nil
	}
	var items []T
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return err
	}
	*target = nonNil(items)
	return nil
}

func fillSuggestions(adds []roster.PersonAdd) []roster.PersonAdd {
	for i := range adds {
		if adds[i].SuggestedTerminates == nil {
			adds[i].SuggestedTerminates = []roster.SuggestedTerminate{}
		}
	}
	return nonNil(adds)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
