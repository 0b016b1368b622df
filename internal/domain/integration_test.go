package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestIntegrationInputBuild(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		in, err := IntegrationInput{
			Name:        "CRM Sync",
			Type:        TypeAPI,
			Source:      "crm",
			Destination: "warehouse",
			Config:      json.RawMessage(`{"url":"https://crm.local","authType":"oauth2"}`),
		}.Build(testNow)
		require.NoError(t, err)

		assert.Equal(t, StatusActive, in.Status)
		assert.Equal(t, "system", in.CreatedBy)
		assert.Equal(t, testNow, in.CreatedAt)
		assert.Nil(t, in.LastModified)
		assert.Equal(t, APIConfig{URL: "https://crm.local", AuthType: "oauth2"}, in.Config)
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := IntegrationInput{Type: "FTP"}.Build(testNow)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidInput))
		assert.Contains(t, err.Error(), "name is required")
		assert.Contains(t, err.Error(), `unknown type "FTP"`)
		assert.Contains(t, err.Error(), "source is required")
		assert.Contains(t, err.Error(), "destination is required")
	})

	t.Run("error status is reserved", func(t *testing.T) {
		_, err := IntegrationInput{
			Name: "x", Type: TypeFile, Source: "a", Destination: "b", Status: StatusError,
		}.Build(testNow)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("custom config kept verbatim", func(t *testing.T) {
		in, err := IntegrationInput{
			Name: "x", Type: TypeCustom, Source: "a", Destination: "b",
			Config: json.RawMessage(`{"anything":[1,2,3]}`),
		}.Build(testNow)
		require.NoError(t, err)
		raw, err := EncodeConfig(in.Config)
		require.NoError(t, err)
		assert.JSONEq(t, `{"anything":[1,2,3]}`, string(raw))
	})

	t.Run("malformed typed config", func(t *testing.T) {
		_, err := IntegrationInput{
			Name: "x", Type: TypeDatabase, Source: "a", Destination: "b",
			Config: json.RawMessage(`{"dbType":42}`),
		}.Build(testNow)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestIntegrationPatchApply(t *testing.T) {
	cur := Integration{
		ID:          3,
		Name:        "Orders",
		Type:        TypeDatabase,
		Status:      StatusActive,
		Config:      DatabaseConfig{DBType: "postgres"},
		Source:      "shop",
		Destination: "dwh",
		CreatedBy:   "system",
		CreatedAt:   testNow.Add(-time.Hour),
	}

	t.Run("partial update", func(t *testing.T) {
		name := "Orders v2"
		status := StatusInactive
		next, err := IntegrationPatch{Name: &name, Status: &status}.Apply(cur, testNow)
		require.NoError(t, err)

		assert.Equal(t, "Orders v2", next.Name)
		assert.Equal(t, StatusInactive, next.Status)
		assert.Equal(t, cur.Config, next.Config)
		assert.Equal(t, cur.CreatedAt, next.CreatedAt)
		require.NotNil(t, next.LastModified)
		assert.Equal(t, testNow, *next.LastModified)
		assert.Equal(t, "Orders", cur.Name, "input value must stay untouched")
	})

	t.Run("type change resets config", func(t *testing.T) {
		typ := TypeFile
		next, err := IntegrationPatch{Type: &typ}.Apply(cur, testNow)
		require.NoError(t, err)
		assert.Equal(t, FileConfig{}, next.Config)
	})

	t.Run("type change with new config", func(t *testing.T) {
		typ := TypeMessageQueue
		next, err := IntegrationPatch{
			Type:   &typ,
			Config: json.RawMessage(`{"queueUrl":"amqp://mq","queueType":"rabbitmq"}`),
		}.Apply(cur, testNow)
		require.NoError(t, err)
		assert.Equal(t, MessageQueueConfig{QueueURL: "amqp://mq", QueueType: "rabbitmq"}, next.Config)
	})

	t.Run("rejects error status", func(t *testing.T) {
		status := StatusError
		_, err := IntegrationPatch{Status: &status}.Apply(cur, testNow)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("rejects blank name", func(t *testing.T) {
		blank := "  "
		_, err := IntegrationPatch{Name: &blank}.Apply(cur, testNow)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestIntegrationJSON(t *testing.T) {
	in := Integration{
		ID:          9,
		Name:        "Billing",
		Type:        TypeMessageQueue,
		Status:      StatusError,
		Config:      MessageQueueConfig{QueueURL: "amqp://mq", QueueType: "rabbitmq"},
		Source:      "billing",
		Destination: "ledger",
		CreatedBy:   "system",
		CreatedAt:   testNow,
	}

	data, err := json.Marshal(in)
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(data, &wire))
	assert.Equal(t, "Message Queue", wire["type"])
	assert.Nil(t, wire["lastModified"])
	assert.Equal(t, map[string]any{"queueUrl": "amqp://mq", "queueType": "rabbitmq"}, wire["config"])

	var back Integration
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, in, back)
}

func TestIntegrationJSONNilConfig(t *testing.T) {
	data, err := json.Marshal(Integration{ID: 1, Type: TypeAPI})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"config":{}`)
}
