package config

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed course.schema.json
var courseSchemaJSON string

// courseSchema rejects unknown keys and mistyped values before decoding.
var courseSchema = jsonschema.MustCompileString("course.schema.json", courseSchemaJSON)

// Course is the per-course file: where the grades come from, how they are
// grouped, which policies run and how scores become letters.
type Course struct {
	Input     Input             `koanf:"input"`
	Groups    []Group           `koanf:"groups" validate:"dive"`
	Scale     Scale             `koanf:"scale"`
	Policies  []Policy          `koanf:"policies" validate:"dive"`
	Overrides map[string]string `koanf:"overrides" validate:"dive,keys,required,endkeys,required"`

	// Dir is the directory relative paths are resolved against.
	Dir string `koanf:"-"`
}

// Input lists the grade files to read and combine.
type Input struct {
	Format                 string   `koanf:"format" validate:"omitempty,oneof=long gradescope"`
	Files                  []string `koanf:"files" validate:"dive,required"`
	StandardizeIDs         *bool    `koanf:"standardize_ids"`
	StandardizeAssignments *bool    `koanf:"standardize_assignments"`
}

// Group is one grading group. Exactly one of Members, Proportional and
// EqualWeight may be set; with none, the group is the assignment of the
// same name.
type Group struct {
	Name         string   `koanf:"name" validate:"required"`
	Weight       float64  `koanf:"weight" validate:"gte=0"`
	ExtraCredit  bool     `koanf:"extra_credit"`
	Cap          bool     `koanf:"cap"`
	Members      []Member `koanf:"members" validate:"dive"`
	Proportional []string `koanf:"proportional" validate:"dive,required"`
	EqualWeight  []string `koanf:"equal_weight" validate:"dive,required"`
	Bonus        []Member `koanf:"bonus" validate:"dive"`
}

// Member is a weighted group member.
type Member struct {
	Assignment  string  `koanf:"assignment" validate:"required"`
	Weight      float64 `koanf:"weight" validate:"gte=0"`
	ExtraCredit bool    `koanf:"extra_credit"`
}

// Scale selects the letter scale. Thresholds win over File, File over
// Rounded; with none set the default scale is used.
type Scale struct {
	Rounded    bool        `koanf:"rounded"`
	File       string      `koanf:"file"`
	Thresholds []Threshold `koanf:"thresholds" validate:"dive"`
	// Robust moves thresholds into gaps of the score distribution.
	Robust bool `koanf:"robust"`
}

// Threshold is one letter cutoff.
type Threshold struct {
	Letter string  `koanf:"letter" validate:"required"`
	Cutoff float64 `koanf:"cutoff"`
}

// Amount is points or a percentage; at most one may be set.
type Amount struct {
	Points  *float64 `koanf:"points" validate:"omitempty,gte=0"`
	Percent *float64 `koanf:"percent" validate:"omitempty,gte=0,lte=100"`
}

// Policy is one step of the policy pipeline. Type selects which of the
// remaining fields apply.
type Policy struct {
	Type string `koanf:"type" validate:"required,oneof=exceptions penalize_lates drop_most_favorable take_best redeem combine_parts combine_versions"`

	// penalize_lates, drop_most_favorable
	Within []string `koanf:"within" validate:"dive,required"`
	// penalize_lates, redeem
	Deduct *Amount `koanf:"deduct"`
	// penalize_lates: this many lates are forgiven first.
	Forgive int `koanf:"forgive" validate:"gte=0"`

	// drop_most_favorable
	K     int    `koanf:"k" validate:"gte=0"`
	Group string `koanf:"group"`

	// take_best, combine_parts, combine_versions
	Sets []Set `koanf:"sets" validate:"dive"`
	// take_best
	PenaltyPercent float64 `koanf:"penalty_percent" validate:"gte=0"`
	Lateness       string  `koanf:"lateness" validate:"omitempty,oneof=max min best"`
	// take_best, redeem, combine_parts: keep the source columns.
	Keep bool `koanf:"keep"`

	// redeem
	Pairs []Pair `koanf:"pairs" validate:"dive"`

	// exceptions
	Student    string      `koanf:"student"`
	Exceptions []Exception `koanf:"exceptions" validate:"dive"`
}

// Set names assignments merged into one: attempts for take_best, parts for
// combine_parts and versions for combine_versions.
type Set struct {
	Name    string   `koanf:"name" validate:"required"`
	Members []string `koanf:"members" validate:"min=1,dive,required"`
}

// Pair is an assignment and its retake.
type Pair struct {
	Name     string `koanf:"name"`
	Original string `koanf:"original" validate:"required"`
	Retake   string `koanf:"retake" validate:"required"`
}

// Exception is one per-student adjustment.
type Exception struct {
	Type       string  `koanf:"type" validate:"required,oneof=forgive_late drop replace"`
	Assignment string  `koanf:"assignment" validate:"required"`
	Reason     string  `koanf:"reason"`
	With       *Amount `koanf:"with"`
	From       string  `koanf:"from"`
}

// LoadCourse reads and validates a course file. Relative input and scale
// paths are resolved against the file's directory.
func LoadCourse(_ context.Context, path string) (*Course, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
	}
	if err := checkSchema(k.Raw()); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
	}
	var c Course
	if err := k.UnmarshalWithConf("", &c, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
	}
	c.Dir = filepath.Dir(path)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for i, f := range c.Input.Files {
		c.Input.Files[i] = c.resolve(f)
	}
	if c.Scale.File != "" {
		c.Scale.File = c.resolve(c.Scale.File)
	}
	return &c, nil
}

// checkSchema validates the decoded YAML document. It goes through JSON so
// numbers reach the validator as json.Number.
func checkSchema(raw map[string]any) error {
	b, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return err
	}
	return courseSchema.Validate(doc)
}

func (c *Course) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.Dir == "" {
		return p
	}
	return filepath.Join(c.Dir, p)
}

// Validate checks field constraints and the rules validator tags cannot
// express.
func (c *Course) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	for _, g := range c.Groups {
		defs := 0
		for _, set := range [][]string{g.Proportional, g.EqualWeight} {
			if len(set) > 0 {
				defs++
			}
		}
		if len(g.Members) > 0 {
			defs++
		}
		if defs > 1 {
			return fmt.Errorf("%w: group %q sets more than one of members, proportional and equal_weight", ErrInvalidConfig, g.Name)
		}
	}
	for _, p := range c.Policies {
		if err := p.Deduct.check(); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, p.Type, err)
		}
		if p.Type == "exceptions" && p.Student == "" {
			return fmt.Errorf("%w: exceptions need a student", ErrInvalidConfig)
		}
		for _, e := range p.Exceptions {
			if err := e.With.check(); err != nil {
				return fmt.Errorf("%w: exception on %s: %w", ErrInvalidConfig, e.Assignment, err)
			}
			if e.Type == "replace" && e.From == "" && e.With == nil {
				return fmt.Errorf("%w: replacing %s needs with or from", ErrInvalidConfig, e.Assignment)
			}
		}
	}
	return nil
}

func (a *Amount) check() error {
	if a != nil && a.Points != nil && a.Percent != nil {
		return errors.New("amount sets both points and percent")
	}
	return nil
}
