package module

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseName(t *testing.T) {
	tests := []struct {
		in      string
		want    Name
		wantErr bool
	}{
		{in: "org.acme:core:1.0", want: NewName("org.acme", "core", "1.0")},
		{in: " org.acme:core ", want: Name{GroupID: "org.acme", ArtifactID: "core"}},
		{in: "org.acme", wantErr: true},
		{in: ":core:1.0", wantErr: true},
		{in: "a:b:c:d", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseName(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNameIsAValueKey(t *testing.T) {
	m := map[Name]int{NewName("g", "a", "1"): 1}
	m[NewName("g", "a", "1")]++
	assert.Equal(t, 2, m[Name{GroupID: "g", ArtifactID: "a", Version: "1"}])
	assert.Equal(t, "g:a:1", NewName("g", "a", "1").String())
	assert.True(t, Name{}.IsZero())
	assert.Negative(t, NewName("g", "a", "1").Compare(NewName("g", "b", "0")))
}

func TestResultWorse(t *testing.T) {
	assert.Equal(t, ResultFailure, ResultSuccess.Worse(ResultFailure))
	assert.Equal(t, ResultFailure, ResultFailure.Worse(ResultUnstable))
	assert.Equal(t, ResultAborted, ResultNotBuilt.Worse(ResultAborted))
	assert.True(t, ResultUnstable.IsWorseThan(ResultSuccess))
	assert.False(t, Result("BOGUS").IsValid())
}

func TestStateFor(t *testing.T) {
	assert.Equal(t, StateSucceeded, StateFor(ResultSuccess))
	assert.Equal(t, StateFailed, StateFor(ResultFailure))
	assert.Equal(t, StateNotBuilt, StateFor(ResultNotBuilt))
	assert.Equal(t, "NOT_BUILT", StateNotBuilt.String())
	assert.True(t, StateFailed.IsTerminal())
	assert.False(t, StateStarted.IsTerminal())
}

func TestNewExecutedStepClampsNegative(t *testing.T) {
	rec := NewExecutedStep(StepInfo{Goal: "compile"}, -5*time.Millisecond, StepSucceeded)
	assert.Zero(t, rec.Elapsed)
	assert.False(t, rec.Failed())
}

func TestStateText(t *testing.T) {
	b, err := StateFailed.MarshalText()
	require.NoError(t, err)
	var s State
	require.NoError(t, s.UnmarshalText(b))
	assert.Equal(t, StateFailed, s)
	require.Error(t, s.UnmarshalText([]byte("EXPLODED")))
}
