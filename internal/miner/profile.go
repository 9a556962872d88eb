package miner

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/panda-miner/pkg/errors"
	"github.com/panda-miner/pkg/model"
	"github.com/panda-miner/pkg/tiling"
)

// Profile selects a preset pattern budget.
type Profile string

const (
	// ProfileQuick mines a handful of dominant tiles.
	ProfileQuick Profile = "quick"
	// ProfileStandard is the default budget.
	ProfileStandard Profile = "standard"
	// ProfileThorough keeps mining until the cost stops falling or the
	// larger budget runs out.
	ProfileThorough Profile = "thorough"
)

var profileMaxK = map[Profile]int{
	ProfileQuick:    10,
	ProfileStandard: 50,
	ProfileThorough: 200,
}

// MaxK returns the pattern budget of the profile.
func (p Profile) MaxK() (int, bool) {
	k, ok := profileMaxK[p]
	return k, ok
}

// Profiles lists the known profiles, cheapest first.
func Profiles() []Profile {
	return []Profile{ProfileQuick, ProfileStandard, ProfileThorough}
}

// Options are fully resolved run parameters.
type Options struct {
	Profile        Profile
	MaxK           int
	MaxRowNoise    float64
	MaxColumnNoise float64
	CostModel      string
	Timeout        time.Duration
}

// Params converts the options back to their wire form.
func (o Options) Params() model.MiningParams {
	return model.MiningParams{
		Profile:        string(o.Profile),
		MaxK:           o.MaxK,
		MaxRowNoise:    o.MaxRowNoise,
		MaxColumnNoise: o.MaxColumnNoise,
		CostModel:      o.CostModel,
		TimeoutSeconds: int(o.Timeout / time.Second),
	}
}

// Resolve merges params over defaults and checks the result. Explicit
// values win over the profile budget. Noise tolerances are taken from
// params as given, since zero is a meaningful tolerance.
func Resolve(params, defaults model.MiningParams) (Options, error) {
	profile := Profile(strings.ToLower(firstNonEmpty(params.Profile, defaults.Profile, string(ProfileStandard))))
	budget, ok := profile.MaxK()
	if !ok {
		return Options{}, apperrors.New(apperrors.CodeInvalidInput, fmt.Sprintf("unknown profile %q", profile))
	}

	opts := Options{
		Profile:        profile,
		MaxK:           budget,
		MaxRowNoise:    params.MaxRowNoise,
		MaxColumnNoise: params.MaxColumnNoise,
		CostModel:      strings.ToLower(firstNonEmpty(params.CostModel, defaults.CostModel, tiling.CostModelSize)),
	}
	switch {
	case params.MaxK != 0:
		opts.MaxK = params.MaxK
	case defaults.MaxK != 0 && params.Profile == "":
		opts.MaxK = defaults.MaxK
	}
	switch {
	case params.TimeoutSeconds != 0:
		opts.Timeout = time.Duration(params.TimeoutSeconds) * time.Second
	default:
		opts.Timeout = time.Duration(defaults.TimeoutSeconds) * time.Second
	}

	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// Validate rejects a negative budget, tolerances outside [0,1), an unknown
// cost model and a negative timeout.
func (o Options) Validate() error {
	if o.MaxK < 0 {
		return apperrors.Wrap(apperrors.CodeInvalidInput, fmt.Sprintf("max_k %d", o.MaxK), tiling.ErrInvalidMaxK)
	}
	if err := tiling.ValidateNoise(o.MaxRowNoise, o.MaxColumnNoise); err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidInput,
			fmt.Sprintf("noise (row %v, column %v)", o.MaxRowNoise, o.MaxColumnNoise), err)
	}
	known := false
	for _, name := range tiling.CostModelNames() {
		known = known || name == o.CostModel
	}
	if !known {
		return apperrors.Wrap(apperrors.CodeInvalidInput, o.CostModel, tiling.ErrUnknownCostModel)
	}
	if o.Timeout < 0 {
		return apperrors.New(apperrors.CodeInvalidInput, "timeout must not be negative")
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
