package engconfig

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.viam.com/ctlio/ctlerrors"
)

func TestDefaultConfigValidates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidateRejectsUnknownLossFunc(t *testing.T) {
	cfg := Default()
	cfg.P2PLossFunc = "HUBER"
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, ctlerrors.IsFatal(err))
}

func TestValidateRejectsNonPositiveVoxelSize(t *testing.T) {
	cfg := Default()
	cfg.VoxelSize = 0
	require.Error(t, cfg.Validate())
}

func TestFromReaderMergesOverDefaults(t *testing.T) {
	cfg, err := FromReader(strings.NewReader(`{"voxel_size": 0.75, "use_imu": false}`))
	require.NoError(t, err)
	assert.Equal(t, 0.75, cfg.VoxelSize)
	assert.False(t, cfg.UseIMU)
	assert.Equal(t, Default().MaxNumberNeighbors, cfg.MaxNumberNeighbors)
}

func TestFromReaderRejectsMalformedJSON(t *testing.T) {
	_, err := FromReader(strings.NewReader(`{not json`))
	require.Error(t, err)
}
