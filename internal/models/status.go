package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Status is the lifecycle state of a tracked container. Any status may follow any other.
type Status string

const (
	StatusClean       Status = "limpo"
	StatusDirty       Status = "sujo"
	StatusInTransit   Status = "em_transito"
	StatusWithClient  Status = "com_cliente"
	StatusMaintenance Status = "manutencao"
)

// StatusMeta is the display metadata of a status.
type StatusMeta struct {
	Value Status `json:"value"`
	Label string `json:"label"`
	Color string `json:"color"`
}

var statusOrder = [...]Status{
	StatusClean,
	StatusDirty,
	StatusInTransit,
	StatusWithClient,
	StatusMaintenance,
}

var statusMeta = map[Status]StatusMeta{
	StatusClean:       {Value: StatusClean, Label: "Limpa", Color: "green"},
	StatusDirty:       {Value: StatusDirty, Label: "Suja", Color: "blue"},
	StatusInTransit:   {Value: StatusInTransit, Label: "Em Trânsito", Color: "orange"},
	StatusWithClient:  {Value: StatusWithClient, Label: "Com Cliente", Color: "purple"},
	StatusMaintenance: {Value: StatusMaintenance, Label: "Manutenção", Color: "red"},
}

// AllStatuses returns the closed set of statuses in display order.
func AllStatuses() []Status {
	out := make([]Status, len(statusOrder))
	copy(out, statusOrder[:])
	return out
}

// ParseStatus accepts the stored value in any case, surrounded by optional whitespace.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("unknown status %q", s)
	}
	return st, nil
}

func (s Status) Valid() bool {
	_, ok := statusMeta[s]
	return ok
}

// Meta returns the display metadata. It panics on a value outside the enum,
// which can only be produced by bypassing ParseStatus.
func (s Status) Meta() StatusMeta {
	m, ok := statusMeta[s]
	if !ok {
		panic(fmt.Sprintf("models: status %q has no metadata", string(s)))
	}
	return m
}

func (s Status) Label() string { return s.Meta().Label }

func (s *Status) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw == "" {
		*s = ""
		return nil
	}
	st, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// StatusCatalog lists every status with its metadata.
func StatusCatalog() []StatusMeta {
	out := make([]StatusMeta, 0, len(statusOrder))
	for _, s := range statusOrder {
		out = append(out, s.Meta())
	}
	return out
}
