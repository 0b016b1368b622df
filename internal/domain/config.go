package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// IntegrationConfig размеченное объединение настроек коннектора.
// Вариант выбирается по IntegrationType; для Custom хранится сырой JSON.
type IntegrationConfig interface {
	ConfigType() IntegrationType
}

type APIConfig struct {
	URL      string `json:"url,omitempty"`
	AuthType string `json:"authType,omitempty"` // none, basic, oauth2, apiKey
}

func (APIConfig) ConfigType() IntegrationType { return TypeAPI }

type DatabaseConfig struct {
	ConnectionString string `json:"connectionString,omitempty"`
	DBType           string `json:"dbType,omitempty"`
}

func (DatabaseConfig) ConfigType() IntegrationType { return TypeDatabase }

type FileConfig struct {
	Path     string `json:"path,omitempty"`
	FileType string `json:"fileType,omitempty"`
}

func (FileConfig) ConfigType() IntegrationType { return TypeFile }

type MessageQueueConfig struct {
	QueueURL  string `json:"queueUrl,omitempty"`
	QueueType string `json:"queueType,omitempty"`
}

func (MessageQueueConfig) ConfigType() IntegrationType { return TypeMessageQueue }

// CustomConfig непрозрачный конфиг, отдается клиенту как есть.
type CustomConfig struct {
	Raw json.RawMessage
}

func (CustomConfig) ConfigType() IntegrationType { return TypeCustom }

func (c CustomConfig) MarshalJSON() ([]byte, error) {
	if len(c.Raw) == 0 {
		return []byte("{}"), nil
	}
	return c.Raw, nil
}

var emptyObject = []byte("{}")

func isEmptyJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// DecodeConfig разбирает JSON в вариант, соответствующий типу.
func DecodeConfig(t IntegrationType, raw json.RawMessage) (IntegrationConfig, error) {
	if isEmptyJSON(raw) {
		raw = emptyObject
	}

	var (
		cfg IntegrationConfig
		err error
	)
	switch t {
	case TypeAPI:
		var c APIConfig
		err = json.Unmarshal(raw, &c)
		cfg = c
	case TypeDatabase:
		var c DatabaseConfig
		err = json.Unmarshal(raw, &c)
		cfg = c
	case TypeFile:
		var c FileConfig
		err = json.Unmarshal(raw, &c)
		cfg = c
	case TypeMessageQueue:
		var c MessageQueueConfig
		err = json.Unmarshal(raw, &c)
		cfg = c
	default:
		if !json.Valid(raw) {
			return nil, fmt.Errorf("%w: config is not valid JSON", ErrInvalidInput)
		}
		cfg = CustomConfig{Raw: append(json.RawMessage(nil), raw...)}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: config for %s: %v", ErrInvalidInput, t, err)
	}
	return cfg, nil
}

// EncodeConfig сериализует вариант для хранения в JSONB; nil дает {}.
func EncodeConfig(cfg IntegrationConfig) (json.RawMessage, error) {
	if cfg == nil {
		return emptyObject, nil
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode %s config: %w", cfg.ConfigType(), err)
	}
	return data, nil
}
