package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"vizlab-service/internal/models"
)

const (
	// ConfigFileName имя файла конфигурации в каталоге устройства
	ConfigFileName = "device_config.json"
	// DefaultBatch батч, метрики которого идут первыми
	DefaultBatch = "default"
)

// deviceConfigSchema описывает допустимую форму device_config.json
const deviceConfigSchema = `{
  "type": "object",
  "required": ["batches"],
  "properties": {
    "device": {
      "type": "object",
      "properties": {"name": {"type": "string"}}
    },
    "batches": {
      "type": "object",
      "minProperties": 1,
      "additionalProperties": {"$ref": "#/definitions/batch"}
    },
    "attack_regions": {
      "type": "array",
      "items": {"$ref": "#/definitions/region"}
    }
  },
  "definitions": {
    "batch": {
      "type": "object",
      "required": ["probe_prefix", "probes", "metrics"],
      "additionalProperties": false,
      "properties": {
        "probe_prefix": {"type": "string"},
        "probes": {"type": "array", "items": {"type": "string"}},
        "metrics": {"type": "array", "items": {"type": "string", "minLength": 1}}
      }
    },
    "region": {
      "type": "object",
      "required": ["start", "end"],
      "additionalProperties": false,
      "properties": {
        "run": {"type": "string"},
        "batch": {"type": "string"},
        "start": {"type": "integer", "minimum": 0},
        "end": {"type": "integer", "minimum": 0}
      }
    }
  }
}`

var configSchema *gojsonschema.Schema

func init() {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(deviceConfigSchema))
	if err != nil {
		panic(fmt.Sprintf("registry: invalid device config schema: %v", err))
	}
	configSchema = s
}

// Batch именованная группа метрик с описанием probe-колонок
type Batch struct {
	Name        string   `json:"-"`
	ProbePrefix string   `json:"probe_prefix"`
	Probes      []string `json:"probes"`
	Metrics     []string `json:"metrics"`
}

// HasMetric сообщает, объявлена ли метрика в батче
func (b Batch) HasMetric(metric string) bool {
	for _, m := range b.Metrics {
		if m == metric {
			return true
		}
	}
	return false
}

// MatchesProbe сообщает, является ли колонка probe-колонкой батча
func (b Batch) MatchesProbe(column string) bool {
	if !strings.HasPrefix(column, b.ProbePrefix) {
		return false
	}
	for _, p := range b.Probes {
		if strings.Contains(column, p) {
			return true
		}
	}
	return false
}

// Batches батчи в порядке объявления в документе
type Batches []Batch

// UnmarshalJSON разбирает объект batches с сохранением порядка ключей
func (bs *Batches) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("batches must be an object")
	}

	seen := make(map[string]struct{})
	out := make(Batches, 0)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected batch key %v", tok)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("duplicate batch %q", name)
		}
		seen[name] = struct{}{}

		var b Batch
		if err := dec.Decode(&b); err != nil {
			return fmt.Errorf("batch %q: %w", name, err)
		}
		b.Name = name
		out = append(out, b)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*bs = out
	return nil
}

// AttackRegion явный диапазон атаки, индексы включительно.
// Пустые Run и Batch означают "любой".
type AttackRegion struct {
	Run   string `json:"run,omitempty"`
	Batch string `json:"batch,omitempty"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Applies сообщает, относится ли правило к данному run и батчу
func (r AttackRegion) Applies(run, batch string) bool {
	return (r.Run == "" || r.Run == run) && (r.Batch == "" || r.Batch == batch)
}

// DeviceInfo секция device документа
type DeviceInfo struct {
	Name string `json:"name"`
}

// DeviceConfig конфигурация устройства
type DeviceConfig struct {
	Device        DeviceInfo     `json:"device"`
	Batches       Batches        `json:"batches"`
	AttackRegions []AttackRegion `json:"attack_regions"`
}

// ParseDeviceConfig проверяет документ по схеме и разбирает его.
// Любая ошибка оборачивает models.ErrConfig.
func ParseDeviceConfig(device string, data []byte) (*DeviceConfig, error) {
	result, err := configSchema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrConfig, device, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s: %s", models.ErrConfig, device, strings.Join(msgs, "; "))
	}

	var cfg DeviceConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrConfig, device, err)
	}

	if cfg.Device.Name != "" && cfg.Device.Name != device {
		return nil, fmt.Errorf("%w: %s: config names device %q", models.ErrConfig, device, cfg.Device.Name)
	}
	for i, r := range cfg.AttackRegions {
		if r.End < r.Start {
			return nil, fmt.Errorf("%w: %s: attack_regions[%d]: end %d before start %d",
				models.ErrConfig, device, i, r.End, r.Start)
		}
	}

	return &cfg, nil
}

// OrderedBatches возвращает батчи в порядке вывода метрик: default первым,
// остальные в порядке объявления
func (c *DeviceConfig) OrderedBatches() []Batch {
	out := make([]Batch, 0, len(c.Batches))
	for _, b := range c.Batches {
		if b.Name == DefaultBatch {
			out = append(out, b)
		}
	}
	for _, b := range c.Batches {
		if b.Name != DefaultBatch {
			out = append(out, b)
		}
	}
	return out
}

// Metrics возвращает метрики устройства: конкатенация метрик батчей
// в порядке OrderedBatches, без сортировки. Повторы отбрасываются.
func (c *DeviceConfig) Metrics() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, b := range c.OrderedBatches() {
		for _, m := range b.Metrics {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	return out
}

// BatchFor возвращает батч, в котором объявлена метрика
func (c *DeviceConfig) BatchFor(metric string) (Batch, bool) {
	for _, b := range c.OrderedBatches() {
		if b.HasMetric(metric) {
			return b, true
		}
	}
	return Batch{}, false
}
