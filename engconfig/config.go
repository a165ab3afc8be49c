// Package engconfig loads and validates the CT-LIO engine's configuration
// (spec.md §6), adapted from the teacher's config package: JSON plus
// ${VAR}-style environment substitution via a8m/envsubst, instead of the
// teacher's cloud-fetch/caching machinery this engine has no use for.
package engconfig

import (
	"bytes"
	"encoding/json"
	"io"
	"os"

	"github.com/a8m/envsubst"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/ctlio/ctlerrors"
	"go.viam.com/ctlio/manifold"
)

// Pose4x4 is a row-major 4x4 homogeneous transform, the wire form spec.md
// §6 specifies for T_sr and T_measured.
type Pose4x4 [16]float64

// Config bundles every knob spec.md §6 names.
type Config struct {
	VoxelSize            float64 `json:"voxel_size"`
	InitVoxelSize        float64 `json:"init_voxel_size"`
	SampleVoxelSize      float64 `json:"sample_voxel_size"`
	InitSampleVoxelSize  float64 `json:"init_sample_voxel_size"`
	SizeVoxelMap         float64 `json:"size_voxel_map"`
	MaxNumPointsInVoxel  int     `json:"max_num_points_in_voxel"`
	MinDistancePoints    float64 `json:"min_distance_points"`
	MaxDistance          float64 `json:"max_distance"`
	InitNumFrames        int     `json:"init_num_frames"`

	MinNumberNeighbors int     `json:"min_number_neighbors"`
	MaxNumberNeighbors int     `json:"max_number_neighbors"`
	P2PMaxDist         float64 `json:"p2p_max_dist"`
	P2PLossFunc        string  `json:"p2p_loss_func"`
	P2PLossSigma       float64 `json:"p2p_loss_sigma"`
	PowerPlanarity     float64 `json:"power_planarity"`
	MinNumberKeypoints int     `json:"min_number_keypoints"`

	NumItersICP             int     `json:"num_iters_icp"`
	MaxIterations           int     `json:"max_iterations"`
	ThresholdOrientationNorm float64 `json:"threshold_orientation_norm"`
	ThresholdTranslationNorm float64 `json:"threshold_translation_norm"`

	NumExtraStates    int `json:"num_extra_states"`
	DelayAddingPoints int `json:"delay_adding_points"`

	QcDiag [6]float64 `json:"qc_diag"`
	AdDiag [6]float64 `json:"ad_diag"`

	UseIMU       bool       `json:"use_imu"`
	UseAccel     bool       `json:"imu_use_accel"`
	RImuAcc      [3]float64 `json:"r_imu_acc"`
	RImuAng      [3]float64 `json:"r_imu_ang"`
	QImu         float64    `json:"q_imu"`
	P0Imu        float64    `json:"p0_imu"`
	Gravity      float64    `json:"gravity"`
	QgDiag       [6]float64 `json:"qg_diag"`
	TMiInitOnly  bool       `json:"t_mi_init_only"`
	UseTMiGT     bool       `json:"use_t_mi_gt"`
	TMiPriorDiag [6]float64 `json:"t_mi_prior_diag"`

	TSr Pose4x4 `json:"t_sr"`

	NumThreads int    `json:"num_threads"`
	Verbose    bool   `json:"verbose"`
	DebugPrint bool   `json:"debug_print"`
	DebugPath  string `json:"debug_path"`

	// SolverBackend selects the per-ICP-iteration nonlinear solve: the
	// default "gauss_newton" runs lstsq.GaussNewtonSolve alone; "nlopt"
	// additionally runs lstsq.NloptRefiner as a bounded SLSQP polish pass
	// on top of the Gauss-Newton solution.
	SolverBackend string `json:"solver_backend"`
	NloptMaxEval  int    `json:"nlopt_max_eval"`
}

// Default returns the configuration with the defaults spec.md §4/§6 name
// explicitly (num_iters_icp 5-10 -> 5, max_iterations -> 5,
// min_number_neighbors -> 20, max_number_neighbors -> 20, p2p loss epsilon
// baked into icp, min_number_keypoints -> 100).
func Default() Config {
	return Config{
		VoxelSize:                0.5,
		InitVoxelSize:            0.2,
		SampleVoxelSize:          1.5,
		InitSampleVoxelSize:      0.6,
		SizeVoxelMap:             1.0,
		MaxNumPointsInVoxel:      20,
		MinDistancePoints:        0.1,
		MaxDistance:              100,
		InitNumFrames:            20,
		MinNumberNeighbors:       20,
		MaxNumberNeighbors:       20,
		P2PMaxDist:               0.5,
		P2PLossFunc:              "CAUCHY",
		P2PLossSigma:             0.1,
		PowerPlanarity:           2,
		MinNumberKeypoints:       100,
		NumItersICP:              5,
		MaxIterations:            5,
		ThresholdOrientationNorm: 0.1,
		ThresholdTranslationNorm: 0.01,
		NumExtraStates:           0,
		DelayAddingPoints:        4,
		QcDiag:                   [6]float64{1, 1, 1, 1, 1, 1},
		AdDiag:                   [6]float64{1, 1, 1, 1, 1, 1},
		UseIMU:                   true,
		UseAccel:                 true,
		RImuAcc:                  [3]float64{0.01, 0.01, 0.01},
		RImuAng:                  [3]float64{0.001, 0.001, 0.001},
		QImu:                     1e-4,
		P0Imu:                    1e-2,
		Gravity:                  -9.81,
		QgDiag:                   [6]float64{1e-6, 1e-6, 1e-6, 1e-6, 1e-6, 1e-6},
		TMiPriorDiag:             [6]float64{1e-4, 1e-2, 1e-2, 1e-4, 1e-4, 1e-8},
		TSr:                      IdentityPose4x4(),
		NumThreads:               4,
		SolverBackend:            "gauss_newton",
		NloptMaxEval:             200,
	}
}

// TsrPose decodes the row-major T_sr wire form into a manifold.Pose.
func (c Config) TsrPose() manifold.Pose {
	p := c.TSr
	rot := [3][3]float64{
		{p[0], p[1], p[2]},
		{p[4], p[5], p[6]},
		{p[8], p[9], p[10]},
	}
	trans := r3.Vector{X: p[3], Y: p[7], Z: p[11]}
	return manifold.NewPoseFromMatrix(rot, trans)
}

// IdentityPose4x4 returns the row-major identity transform.
func IdentityPose4x4() Pose4x4 {
	return Pose4x4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Load reads and env-substitutes the JSON config at path, merging over
// Default() so an incomplete config file still yields usable values.
func Load(path string) (Config, error) {
	buf, err := envsubst.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "reading config %s", path)
	}
	return FromReader(bytes.NewReader(buf))
}

// FromReader parses r the same way Load does, without touching the
// filesystem or the environment (r is expected to already be substituted).
func FromReader(r io.Reader) (Config, error) {
	cfg := Default()
	dec := json.NewDecoder(r)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, errors.Wrap(err, "decoding config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the invariants spec.md §6 "Error exits" calls out as
// malformed configuration, returning a *ctlerrors.FatalError.
func (c Config) Validate() error {
	if c.VoxelSize <= 0 || c.InitVoxelSize <= 0 {
		return ctlerrors.NewFatal("voxel_size and init_voxel_size must be positive")
	}
	if c.SizeVoxelMap <= 0 {
		return ctlerrors.NewFatal("size_voxel_map must be positive")
	}
	if c.MaxNumPointsInVoxel <= 0 {
		return ctlerrors.NewFatal("max_num_points_in_voxel must be positive")
	}
	if c.MinNumberNeighbors <= 0 || c.MaxNumberNeighbors < c.MinNumberNeighbors {
		return ctlerrors.NewFatal("min_number_neighbors/max_number_neighbors misconfigured")
	}
	if c.NumItersICP <= 0 || c.MaxIterations <= 0 {
		return ctlerrors.NewFatal("num_iters_icp and max_iterations must be positive")
	}
	switch c.P2PLossFunc {
	case "L2", "DCS", "CAUCHY", "GM":
	default:
		return ctlerrors.NewFatal("p2p_loss_func must be one of L2, DCS, CAUCHY, GM, got %q", c.P2PLossFunc)
	}
	switch c.SolverBackend {
	case "gauss_newton", "nlopt":
	default:
		return ctlerrors.NewFatal("solver_backend must be one of gauss_newton, nlopt, got %q", c.SolverBackend)
	}
	if c.NumThreads <= 0 {
		return ctlerrors.NewFatal("num_threads must be positive")
	}
	if c.UseIMU {
		for i := 0; i < 3; i++ {
			if c.RImuAcc[i] <= 0 || c.RImuAng[i] <= 0 {
				return ctlerrors.NewFatal("r_imu_acc/r_imu_ang entries must be positive when use_imu is set")
			}
		}
		if c.QImu <= 0 || c.P0Imu <= 0 {
			return ctlerrors.NewFatal("q_imu and p0_imu must be positive when use_imu is set")
		}
	}
	return nil
}

// LookupEnvOr is a small helper mirroring the teacher's pattern of letting
// a config value fall back to an environment variable. No code in this
// module calls it.
func LookupEnvOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
