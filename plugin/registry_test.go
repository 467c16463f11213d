package plugin_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/entitle/catalog"
	"github.com/xraph/entitle/entitlement"
	"github.com/xraph/entitle/plugin"
)

type quotaPlugin struct {
	name     string
	checked  atomic.Int32
	exceeded atomic.Int32
	err      error
}

func (p *quotaPlugin) Name() string { return p.name }

func (p *quotaPlugin) OnQuotaChecked(context.Context, string, entitlement.QuotaVerdict) error {
	p.checked.Add(1)
	return p.err
}

func (p *quotaPlugin) OnQuotaExceeded(context.Context, string, entitlement.QuotaVerdict) error {
	p.exceeded.Add(1)
	return p.err
}

type slowPlugin struct{ release chan struct{} }

func (p *slowPlugin) Name() string { return "slow" }

func (p *slowPlugin) OnStoreError(context.Context, string, error) error {
	<-p.release
	return nil
}

type nameOnly struct{}

func (nameOnly) Name() string { return "bare" }

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := plugin.NewRegistry()
	require.NoError(t, r.Register(&quotaPlugin{name: "q"}))
	require.NoError(t, r.Register(nameOnly{}))

	err := r.Register(&quotaPlugin{name: "q"})
	assert.Error(t, err)

	assert.Equal(t, 2, r.Count())
	assert.Len(t, r.List(), 2)
	assert.NotNil(t, r.Get("bare"))
	assert.Nil(t, r.Get("missing"))
}

func TestEmitQuotaChecked(t *testing.T) {
	r := plugin.NewRegistry()
	p := &quotaPlugin{name: "q"}
	require.NoError(t, r.Register(p))
	require.NoError(t, r.Register(nameOnly{}))
	ctx := context.Background()

	r.EmitQuotaChecked(ctx, "t1", entitlement.QuotaVerdict{Allowed: true, Resource: catalog.ResourceProduct, Limit: 5})
	r.EmitQuotaChecked(ctx, "t1", entitlement.QuotaVerdict{Allowed: false, Resource: catalog.ResourceProduct, Current: 5, Limit: 5})

	assert.Equal(t, int32(2), p.checked.Load())
	assert.Equal(t, int32(1), p.exceeded.Load())
}

func TestHookErrorsDoNotPropagate(t *testing.T) {
	r := plugin.NewRegistry()
	failing := &quotaPlugin{name: "failing", err: errors.New("boom")}
	after := &quotaPlugin{name: "after"}
	require.NoError(t, r.Register(failing))
	require.NoError(t, r.Register(after))

	r.EmitQuotaChecked(context.Background(), "t1", entitlement.QuotaVerdict{Allowed: false})

	assert.Equal(t, int32(1), failing.exceeded.Load())
	assert.Equal(t, int32(1), after.exceeded.Load())
}

func TestHookTimeout(t *testing.T) {
	r := plugin.NewRegistry().WithTimeout(20 * time.Millisecond)
	p := &slowPlugin{release: make(chan struct{})}
	t.Cleanup(func() { close(p.release) })
	require.NoError(t, r.Register(p))

	start := time.Now()
	r.EmitStoreError(context.Background(), "resolve", errors.New("down"))
	assert.Less(t, time.Since(start), time.Second)
}
