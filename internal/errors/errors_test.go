package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPolicyTable(t *testing.T) {
	tests := []struct {
		kind   Kind
		action Action
	}{
		{KindMalformedReport, Abort},
		{KindProbeInvocation, Recover},
		{KindMetadataResolution, Abort},
		{KindOutputWrite, Abort},
		{KindExternal, Recover},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.action, PolicyFor(tt.kind).Action)
		})
	}
}

func TestIsMatchesKindThroughWrapping(t *testing.T) {
	base := MetadataFailuref(stderrors.New("exit status 128"), "resolve %s", "abc123")
	wrapped := fmt.Errorf("aggregation aborted: %w", base)

	assert.True(t, Is(wrapped, Sentinel(KindMetadataResolution)))
	assert.False(t, Is(wrapped, Sentinel(KindOutputWrite)))
	assert.Equal(t, KindMetadataResolution, KindOf(wrapped))
	assert.True(t, IsFatal(wrapped))
	assert.False(t, IsRecoverable(wrapped))
}

func TestRecoverableProbeFailure(t *testing.T) {
	err := ProbeFailuref(nil, "scc produced no Total row")
	assert.True(t, IsRecoverable(err))
	assert.False(t, IsFatal(err))
	assert.Equal(t, "scc produced no Total row", err.Error())
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, KindExternal, "ignored"))
}

func TestDetailedString(t *testing.T) {
	err := OutputWriteFailuref(stderrors.New("permission denied"), "create ledger").
		WithContext("path", "/tmp/out.csv")

	s := err.DetailedString()
	assert.Contains(t, s, "[CRITICAL] [OutputWriteFailure] create ledger")
	assert.Contains(t, s, "Caused by: permission denied")
	assert.Contains(t, s, "path: /tmp/out.csv")
}

func TestContinuesPipeline(t *testing.T) {
	assert.True(t, ContinuesPipeline(nil))
	assert.True(t, ContinuesPipeline(ExternalErrorf(nil, "clone failed")))
	assert.True(t, ContinuesPipeline(MalformedReportf(nil, "bad report")))
	assert.True(t, ContinuesPipeline(MetadataFailuref(nil, "unknown commit")))
	assert.False(t, ContinuesPipeline(OutputWriteFailuref(nil, "disk full")))
	assert.False(t, ContinuesPipeline(fmt.Errorf("untyped")))
}
