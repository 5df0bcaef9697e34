// Package config holds the settings of one schemasync run and loads them
// from an optional YAML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults for settings that have one.
const (
	DefaultCharset     = "utf8"
	DefaultConcurrency = 4
)

// Run is everything one invocation needs. Nil name filters select every
// object of their kind.
type Run struct {
	Source string
	Target string

	SyncAutoIncrement  bool
	SyncComments       bool
	OnlyExistingTables bool

	Tables     []string
	Views      []string
	Triggers   []string
	Procedures []string

	Charset   string
	OutDir    string
	Tag       string
	NoDate    bool
	Versioned bool
	DryRun    bool

	AlertURL string
	NoDelete bool

	Concurrency int
	Log         Log
}

// Log configures logging.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	SeqURL string `yaml:"seq_url"`
}

// Default returns a Run with every default applied; OutDir is the current
// working directory.
func Default() Run {
	wd, _ := os.Getwd()
	return Run{
		Charset:     DefaultCharset,
		OutDir:      wd,
		Concurrency: DefaultConcurrency,
		Log:         Log{Level: "info", Format: "text"},
	}
}

// Validate checks the settings that can be checked without connecting.
func (r Run) Validate() error {
	var errs []error
	if r.Source == "" || r.Target == "" {
		errs = append(errs, errors.New("missing source or target database URL"))
	}
	if !r.DryRun {
		switch {
		case r.OutDir == "":
			errs = append(errs, errors.New("output directory is required"))
		case !filepath.IsAbs(r.OutDir):
			errs = append(errs, fmt.Errorf("output directory %q must be an absolute path", r.OutDir))
		default:
			info, err := os.Stat(r.OutDir)
			if err != nil || !info.IsDir() {
				errs = append(errs, fmt.Errorf("output directory %q does not exist", r.OutDir))
			}
		}
	}
	if r.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be at least 1, got %d", r.Concurrency))
	}
	return errors.Join(errs...)
}

// File mirrors Run in YAML. Pointer fields distinguish "absent" from the
// zero value so that only keys present in the file override defaults.
type File struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`

	SyncAutoIncrement  *bool `yaml:"sync_auto_inc"`
	SyncComments       *bool `yaml:"sync_comments"`
	OnlyExistingTables *bool `yaml:"only_sync_exists_tables"`

	Tables     []string `yaml:"tables"`
	Views      []string `yaml:"views"`
	Triggers   []string `yaml:"triggers"`
	Procedures []string `yaml:"procedures"`

	Charset   string `yaml:"charset"`
	OutDir    string `yaml:"out_dir"`
	Tag       string `yaml:"tag"`
	NoDate    *bool  `yaml:"no_date"`
	Versioned *bool  `yaml:"revision"`

	AlertURL string `yaml:"url"`
	NoDelete *bool  `yaml:"no_delete"`

	Concurrency int `yaml:"concurrency"`
	Log         Log `yaml:"log"`
}

// Load reads a YAML config file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &f, nil
}

// Apply copies the values present in f onto r, except those whose
// command-line flag was set explicitly. flagSet receives flag names such as
// "sync-comments"; it may be nil.
func (f *File) Apply(r *Run, flagSet func(name string) bool) {
	set := func(name string) bool { return flagSet != nil && flagSet(name) }

	str := func(name, v string, dst *string) {
		if v != "" && !set(name) {
			*dst = v
		}
	}
	flag := func(name string, v *bool, dst *bool) {
		if v != nil && !set(name) {
			*dst = *v
		}
	}
	list := func(name string, v []string, dst *[]string) {
		if v != nil && !set(name) {
			*dst = v
		}
	}

	str("source", f.Source, &r.Source)
	str("target", f.Target, &r.Target)
	flag("sync-auto-inc", f.SyncAutoIncrement, &r.SyncAutoIncrement)
	flag("sync-comments", f.SyncComments, &r.SyncComments)
	flag("only-sync-exists-tables", f.OnlyExistingTables, &r.OnlyExistingTables)
	list("tables", f.Tables, &r.Tables)
	list("views", f.Views, &r.Views)
	list("triggers", f.Triggers, &r.Triggers)
	list("procedures", f.Procedures, &r.Procedures)
	str("charset", f.Charset, &r.Charset)
	str("out-dir", f.OutDir, &r.OutDir)
	str("tag", f.Tag, &r.Tag)
	flag("no-date", f.NoDate, &r.NoDate)
	flag("revision", f.Versioned, &r.Versioned)
	str("url", f.AlertURL, &r.AlertURL)
	flag("no-delete", f.NoDelete, &r.NoDelete)
	if f.Concurrency > 0 && !set("concurrency") {
		r.Concurrency = f.Concurrency
	}
	str("log-level", f.Log.Level, &r.Log.Level)
	str("log-format", f.Log.Format, &r.Log.Format)
	str("seq-url", f.Log.SeqURL, &r.Log.SeqURL)
}

// SplitList parses a comma-separated flag value. A blank value yields nil,
// meaning no filter; a value naming nothing, such as ",,", yields an empty
// list, meaning nothing is selected.
func SplitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
