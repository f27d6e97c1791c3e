package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"shiftdesk/internal/domain"
)

const FileName = "shiftdesk.yml"

// Config models shiftdesk.yml.
type Config struct {
	Server struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"server"`
	Session struct {
		Role      domain.Role `yaml:"role"`
		UserID    string      `yaml:"user_id"`
		UserName  string      `yaml:"user_name"`
		CSRFToken string      `yaml:"csrf_token"`
	} `yaml:"session"`
	Roster  []domain.Person `yaml:"roster"`
	Catalog struct {
		Components    []Component `yaml:"components"`
		SectionTracks []string    `yaml:"section_tracks"`
	} `yaml:"catalog"`
	Timing struct {
		SuccessTTL   time.Duration `yaml:"success_ttl"`
		ErrorTTL     time.Duration `yaml:"error_ttl"`
		RefreshDelay time.Duration `yaml:"refresh_delay"`
	} `yaml:"timing"`
	PreviewLength int      `yaml:"preview_length"`
	Labels        Labels   `yaml:"labels"`
	Messages      Messages `yaml:"messages"`
	Log           struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Devserver struct {
		Addr      string `yaml:"addr"`
		CSRFToken string `yaml:"csrf_token"`
	} `yaml:"devserver"`
}

type Component struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

type Labels struct {
	Activity string `yaml:"activity"`
	Analysis string `yaml:"analysis"`
	Validate string `yaml:"validate"`
	Date     string `yaml:"date"`
	Foreman  string `yaml:"foreman"`
}

// TypeLabel returns the localized label of a report type.
func (l Labels) TypeLabel(t domain.ReportType) string {
	if t == domain.ReportActivity {
		return l.Activity
	}
	return l.Analysis
}

// Messages holds every user-facing notification text.
type Messages struct {
	ActivitySaved  string `yaml:"activity_saved"`
	AnalysisSaved  string `yaml:"analysis_saved"`
	SaveFailed     string `yaml:"save_failed"`
	SaveError      string `yaml:"save_error"`
	ListFailed     string `yaml:"list_failed"`
	DetailFailed   string `yaml:"detail_failed"`
	Approved       string `yaml:"approved"`
	Rejected       string `yaml:"rejected"`
	ValidateFailed string `yaml:"validate_failed"`
	ValidateError  string `yaml:"validate_error"`
	Cleared        string `yaml:"cleared"`
	ClearFailed    string `yaml:"clear_failed"`
	ClearError     string `yaml:"clear_error"`
	ClearConfirm   string `yaml:"clear_confirm"`
	Exported       string `yaml:"exported"`
	ExportError    string `yaml:"export_error"`
	InboxError     string `yaml:"inbox_error"`
	Unexpected     string `yaml:"unexpected"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with sd config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional falls back to defaults when the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.BaseURL == "" {
		return fmt.Errorf("config.server.base_url is required")
	}
	switch c.Session.Role {
	case domain.RoleForeman, domain.RoleLeader, domain.RoleAdmin:
	default:
		return fmt.Errorf("config.session.role must be foreman, leader or admin (got %q)", c.Session.Role)
	}
	if len(c.Catalog.Components) == 0 {
		return fmt.Errorf("config.catalog.components is required")
	}
	seen := map[string]bool{}
	for _, comp := range c.Catalog.Components {
		if comp.Code == "" {
			return fmt.Errorf("component %q has empty code", comp.Name)
		}
		if seen[comp.Code] {
			return fmt.Errorf("component code %s declared twice", comp.Code)
		}
		seen[comp.Code] = true
	}
	if len(c.Catalog.SectionTracks) == 0 {
		return fmt.Errorf("config.catalog.section_tracks is required")
	}
	people := map[string]bool{}
	for _, p := range c.Roster {
		if p.ID == "" {
			return fmt.Errorf("roster entry %q has empty id", p.Name)
		}
		if people[p.ID] {
			return fmt.Errorf("roster id %s declared twice", p.ID)
		}
		people[p.ID] = true
	}
	if c.Timing.SuccessTTL <= 0 || c.Timing.ErrorTTL <= 0 {
		return fmt.Errorf("config.timing success_ttl and error_ttl must be positive")
	}
	if c.Timing.RefreshDelay < 0 {
		return fmt.Errorf("config.timing.refresh_delay must not be negative")
	}
	if c.PreviewLength <= 0 {
		return fmt.Errorf("config.preview_length must be positive")
	}
	if c.Messages.SaveError == "" || c.Messages.ValidateError == "" || c.Messages.Unexpected == "" {
		return fmt.Errorf("config.messages is incomplete")
	}
	return nil
}

// HasComponent reports whether code is in the component catalog.
func (c *Config) HasComponent(code string) bool {
	for _, comp := range c.Catalog.Components {
		if comp.Code == code {
			return true
		}
	}
	return false
}

// HasTrack reports whether track is in the section track catalog.
func (c *Config) HasTrack(track string) bool {
	for _, t := range c.Catalog.SectionTracks {
		if t == track {
			return true
		}
	}
	return false
}

// Person looks a roster member up by id.
func (c *Config) Person(id string) (domain.Person, bool) {
	for _, p := range c.Roster {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Person{}, false
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, FileName)
}

// GenerateDefault returns the default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the parsed default config.
func Default() *Config {
	var cfg Config
	if err := yaml.Unmarshal([]byte(defaultTemplate), &cfg); err != nil {
		panic(fmt.Sprintf("default config template: %v", err))
	}
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Missing sections
// keep their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `server:
  base_url: http://127.0.0.1:8000

session:
  role: foreman
  user_id: "1"
  user_name: Foreman
  csrf_token: dev-csrf-token

roster:
  - id: "1"
    name: Foreman

catalog:
  components:
    - {code: "1000", name: Engine}
    - {code: "2000", name: Clutch System}
    - {code: "3000", name: Transmission}
    - {code: "4000", name: Travel Drive-Axle}
    - {code: "5000", name: Steering}
    - {code: "6000", name: Undercarriage}
    - {code: "7000", name: Electric}
    - {code: "8000", name: Attachment}
    - {code: "9000", name: Periodical Service}
  section_tracks:
    - PC1250
    - CAT395
    - DX800
    - PC500
    - PC300
    - PC200/210
    - D375
    - D155
    - D85
    - EPIROC DM30
    - HD785
    - VOLVO FMX400
    - GD955
    - GD535
    - GD160K/M
    - DYNAPAC COMPACTOR
    - HD465/WT
    - RENAULT FT/LB
    - HINO WT/LT/CT
    - MANITAOU
    - KATO CRANE
    - GENSET
    - WATER PUMP (WP)
    - HINO DT
    - MERCY DT
    - BOMAG COMPACTOR

timing:
  success_ttl: 3s
  error_ttl: 5s
  refresh_delay: 1s

preview_length: 180

labels:
  activity: Activity
  analysis: Analysis
  validate: Validasi
  date: Tanggal
  foreman: Foreman

messages:
  activity_saved: Laporan aktivitas berhasil disimpan
  analysis_saved: Laporan analisis berhasil disimpan
  save_failed: Gagal menyimpan laporan
  save_error: Terjadi kesalahan saat menyimpan laporan
  list_failed: Gagal memuat laporan
  detail_failed: Gagal memuat detail laporan
  approved: Laporan berhasil disetujui
  rejected: Laporan berhasil ditolak
  validate_failed: Gagal memvalidasi laporan
  validate_error: Terjadi kesalahan saat memvalidasi laporan
  cleared: Semua data laporan berhasil dihapus
  clear_failed: Gagal menghapus data
  clear_error: Terjadi kesalahan saat menghapus data
  clear_confirm: Apakah Anda yakin ingin menghapus semua data laporan?
  exported: Data laporan berhasil diunduh
  export_error: Terjadi kesalahan saat mengunduh data
  inbox_error: Gagal memuat notifikasi
  unexpected: Terjadi kesalahan yang tidak terduga

log:
  level: info
  format: console

devserver:
  addr: 127.0.0.1:8000
  csrf_token: dev-csrf-token
`
