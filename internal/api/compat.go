package api

import (
	"encoding/json"
	"time"

	"github.com/avargasm/medchat-cli/internal/models"
)

// The client pins the current backend contract. Everything in this file
// tolerates payloads from older deployments and can be deleted once none of
// those remain.

// ExtractToken pulls a bearer token out of a login payload. Current backends
// return {"access_token": ...}; older ones returned {"token": ...} or a bare
// JSON string.
func ExtractToken(data json.RawMessage) (string, bool) {
	var obj struct {
		AccessToken string `json:"access_token"`
		Token       string `json:"token"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		if obj.AccessToken != "" {
			return obj.AccessToken, true
		}
		if obj.Token != "" {
			return obj.Token, true
		}
	}
	var bare string
	if err := json.Unmarshal(data, &bare); err == nil && bare != "" {
		return bare, true
	}
	return "", false
}

// ExtractChatReply pulls the assistant reply out of an agent response.
// Current backends use "response"; one older deployment used "llm".
func ExtractChatReply(data json.RawMessage) (string, bool) {
	var obj struct {
		Response string `json:"response"`
		LLM      string `json:"llm"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return "", false
	}
	if obj.Response != "" {
		return obj.Response, true
	}
	if obj.LLM != "" {
		return obj.LLM, true
	}
	return "", false
}

// pacsWire accepts both the current field names (display_name/base_rs,
// created_at) and the legacy ones (name/url, createdAt).
type pacsWire struct {
	ID            string     `json:"id"`
	DisplayName   string     `json:"display_name"`
	BaseRS        string     `json:"base_rs"`
	Name          string     `json:"name"`
	URL           string     `json:"url"`
	Location      string     `json:"location"`
	Tags          []string   `json:"tags"`
	CreatedAt     *time.Time `json:"created_at"`
	CreatedAtCaml *time.Time `json:"createdAt"`
}

func (w pacsWire) toModel() models.PACSConfig {
	cfg := models.PACSConfig{
		ID:          w.ID,
		DisplayName: w.DisplayName,
		BaseRS:      w.BaseRS,
		Location:    w.Location,
		Tags:        w.Tags,
	}
	if cfg.DisplayName == "" {
		cfg.DisplayName = w.Name
	}
	if cfg.BaseRS == "" {
		cfg.BaseRS = w.URL
	}
	if w.CreatedAt != nil {
		cfg.CreatedAt = *w.CreatedAt
	} else if w.CreatedAtCaml != nil {
		cfg.CreatedAt = *w.CreatedAtCaml
	}
	return cfg
}

// DecodePACSConfig decodes one PACS record in either contract shape.
func DecodePACSConfig(data json.RawMessage) (models.PACSConfig, error) {
	var w pacsWire
	if err := json.Unmarshal(data, &w); err != nil {
		return models.PACSConfig{}, err
	}
	return w.toModel(), nil
}

// DecodePACSList decodes a PACS listing, accepting both a bare array and the
// wrapped {"configs": [...]} form.
func DecodePACSList(data json.RawMessage) ([]models.PACSConfig, error) {
	var wires []pacsWire
	if err := json.Unmarshal(data, &wires); err != nil {
		var wrapped struct {
			Configs []pacsWire `json:"configs"`
		}
		if err2 := json.Unmarshal(data, &wrapped); err2 != nil || wrapped.Configs == nil {
			return nil, err
		}
		wires = wrapped.Configs
	}
	configs := make([]models.PACSConfig, 0, len(wires))
	for _, w := range wires {
		configs = append(configs, w.toModel())
	}
	return configs, nil
}
