package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type IntegrationType string

const (
	TypeAPI          IntegrationType = "API"
	TypeDatabase     IntegrationType = "Database"
	TypeFile         IntegrationType = "File"
	TypeMessageQueue IntegrationType = "Message Queue"
	TypeCustom       IntegrationType = "Custom"
)

// IntegrationTypes закрытый набор типов коннекторов.
var IntegrationTypes = []IntegrationType{TypeAPI, TypeDatabase, TypeFile, TypeMessageQueue, TypeCustom}

func (t IntegrationType) Valid() bool {
	for _, known := range IntegrationTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Статусы интеграции. Error выставляется только ядром по Failure-метрике.
type IntegrationStatus string

const (
	StatusActive   IntegrationStatus = "Active"
	StatusInactive IntegrationStatus = "Inactive"
	StatusError    IntegrationStatus = "Error"
)

func (s IntegrationStatus) Valid() bool {
	return s == StatusActive || s == StatusInactive || s == StatusError
}

// Settable статусы, которые разрешено выставлять через CRUD.
func (s IntegrationStatus) Settable() bool {
	return s == StatusActive || s == StatusInactive
}

// Integration описание коннектора между источником и приемником данных.
type Integration struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Type        IntegrationType   `json:"type"`
	Status      IntegrationStatus `json:"status"`
	Config      IntegrationConfig `json:"config"`
	Source      string            `json:"source"`
	Destination string            `json:"destination"`
	CreatedBy   string            `json:"createdBy"`
	CreatedAt   time.Time         `json:"createdAt"`

	// nil до первой мутации
	LastModified *time.Time `json:"lastModified"`
}

type integrationWire struct {
	ID           int64             `json:"id"`
	Name         string            `json:"name"`
	Description  string            `json:"description,omitempty"`
	Type         IntegrationType   `json:"type"`
	Status       IntegrationStatus `json:"status"`
	Config       json.RawMessage   `json:"config"`
	Source       string            `json:"source"`
	Destination  string            `json:"destination"`
	CreatedBy    string            `json:"createdBy"`
	CreatedAt    time.Time         `json:"createdAt"`
	LastModified *time.Time        `json:"lastModified"`
}

func (i Integration) MarshalJSON() ([]byte, error) {
	cfg, err := EncodeConfig(i.Config)
	if err != nil {
		return nil, err
	}
	return json.Marshal(integrationWire{
		ID:           i.ID,
		Name:         i.Name,
		Description:  i.Description,
		Type:         i.Type,
		Status:       i.Status,
		Config:       cfg,
		Source:       i.Source,
		Destination:  i.Destination,
		CreatedBy:    i.CreatedBy,
		CreatedAt:    i.CreatedAt,
		LastModified: i.LastModified,
	})
}

func (i *Integration) UnmarshalJSON(data []byte) error {
	var w integrationWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	cfg, err := DecodeConfig(w.Type, w.Config)
	if err != nil {
		return err
	}
	*i = Integration{
		ID:           w.ID,
		Name:         w.Name,
		Description:  w.Description,
		Type:         w.Type,
		Status:       w.Status,
		Config:       cfg,
		Source:       w.Source,
		Destination:  w.Destination,
		CreatedBy:    w.CreatedBy,
		CreatedAt:    w.CreatedAt,
		LastModified: w.LastModified,
	}
	return nil
}

// IntegrationInput тело запроса на создание интеграции.
type IntegrationInput struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Type        IntegrationType   `json:"type"`
	Status      IntegrationStatus `json:"status"`
	Config      json.RawMessage   `json:"config"`
	Source      string            `json:"source"`
	Destination string            `json:"destination"`
	CreatedBy   string            `json:"createdBy"`
}

// Build проверяет вход и собирает сущность с дефолтами (Active, "system").
func (in IntegrationInput) Build(now time.Time) (*Integration, error) {
	var problems []string
	if strings.TrimSpace(in.Name) == "" {
		problems = append(problems, "name is required")
	}
	if !in.Type.Valid() {
		problems = append(problems, fmt.Sprintf("unknown type %q", in.Type))
	}
	if strings.TrimSpace(in.Source) == "" {
		problems = append(problems, "source is required")
	}
	if strings.TrimSpace(in.Destination) == "" {
		problems = append(problems, "destination is required")
	}
	status := in.Status
	if status == "" {
		status = StatusActive
	}
	if !status.Settable() {
		problems = append(problems, fmt.Sprintf("status %q cannot be set directly", status))
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(problems, "; "))
	}

	cfg, err := DecodeConfig(in.Type, in.Config)
	if err != nil {
		return nil, err
	}
	createdBy := in.CreatedBy
	if createdBy == "" {
		createdBy = "system"
	}
	return &Integration{
		Name:        in.Name,
		Description: in.Description,
		Type:        in.Type,
		Status:      status,
		Config:      cfg,
		Source:      in.Source,
		Destination: in.Destination,
		CreatedBy:   createdBy,
		CreatedAt:   now,
	}, nil
}

// IntegrationMutation вычисляет новое состояние интеграции из текущего.
// Хранилище вызывает ее, удерживая блокировку записи.
type IntegrationMutation func(cur Integration) (*Integration, error)

// IntegrationPatch частичное обновление: nil-поля не трогаются.
type IntegrationPatch struct {
	Name        *string            `json:"name"`
	Description *string            `json:"description"`
	Type        *IntegrationType   `json:"type"`
	Status      *IntegrationStatus `json:"status"`
	Config      json.RawMessage    `json:"config"`
	Source      *string            `json:"source"`
	Destination *string            `json:"destination"`
}

// Apply применяет патч к копии интеграции и проставляет lastModified.
func (p IntegrationPatch) Apply(cur Integration, now time.Time) (*Integration, error) {
	next := cur
	if p.Name != nil {
		if strings.TrimSpace(*p.Name) == "" {
			return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
		}
		next.Name = *p.Name
	}
	if p.Description != nil {
		next.Description = *p.Description
	}
	if p.Source != nil {
		next.Source = *p.Source
	}
	if p.Destination != nil {
		next.Destination = *p.Destination
	}
	if p.Status != nil {
		if !p.Status.Settable() {
			return nil, fmt.Errorf("%w: status %q cannot be set directly", ErrInvalidInput, *p.Status)
		}
		next.Status = *p.Status
	}

	typeChanged := false
	if p.Type != nil {
		if !p.Type.Valid() {
			return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidInput, *p.Type)
		}
		typeChanged = *p.Type != cur.Type
		next.Type = *p.Type
	}
	switch {
	case len(p.Config) > 0:
		cfg, err := DecodeConfig(next.Type, p.Config)
		if err != nil {
			return nil, err
		}
		next.Config = cfg
	case typeChanged:
		// старый конфиг не подходит под новый тип
		next.Config, _ = DecodeConfig(next.Type, nil)
	}

	next.LastModified = &now
	return &next, nil
}
