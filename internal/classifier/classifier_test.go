package classifier

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/execevent"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/orderstate"
)

func TestMissingFillScenarioA(t *testing.T) {
	var st orderstate.State
	st.Primary.Seen = true
	st.Primary.Status = execevent.StatusNew
	st.Primary.CumQty = 0

	st.DropCopy.Seen = true
	st.DropCopy.Status = execevent.StatusFilled
	st.DropCopy.CumQty = 100
	st.DropCopy.AvgPx = 1_000_000

	m := Mismatch(&st, Tolerances{})
	require.True(t, m.Has(orderstate.MismatchStatus))

	kind, ok := Classify(&st, m, Tolerances{})
	require.True(t, ok)
	require.Equal(t, MissingFill, kind)
}

func TestPhantomOrder(t *testing.T) {
	var st orderstate.State
	st.DropCopy.Seen = true
	st.DropCopy.Status = execevent.StatusNew

	m := Mismatch(&st, Tolerances{})
	require.True(t, m.Has(orderstate.MismatchExistence))
	kind, ok := Classify(&st, m, Tolerances{})
	require.True(t, ok)
	require.Equal(t, PhantomOrder, kind)
}

func TestMissingDropCopy(t *testing.T) {
	var st orderstate.State
	st.Primary.Seen = true
	st.Primary.Status = execevent.StatusNew

	m := Mismatch(&st, Tolerances{})
	kind, ok := Classify(&st, m, Tolerances{})
	require.True(t, ok)
	require.Equal(t, MissingDropCopy, kind)
}

func TestQuantityMismatchScenarioD(t *testing.T) {
	var st orderstate.State
	st.Primary.Seen = true
	st.Primary.Status = execevent.StatusFilled
	st.Primary.CumQty = 100
	st.Primary.AvgPx = 1_234_500

	st.DropCopy.Seen = true
	st.DropCopy.Status = execevent.StatusFilled
	st.DropCopy.CumQty = 150
	st.DropCopy.AvgPx = 1_234_500

	m := Mismatch(&st, Tolerances{})
	kind, ok := Classify(&st, m, Tolerances{})
	require.True(t, ok)
	require.Equal(t, QuantityMismatch, kind)
}

func TestNoMismatchWhenConverged(t *testing.T) {
	var st orderstate.State
	st.Primary.Seen = true
	st.Primary.Status = execevent.StatusFilled
	st.Primary.CumQty = 100
	st.Primary.AvgPx = 1_234_500
	st.Primary.LastTransactTime = 50

	st.DropCopy.Seen = true
	st.DropCopy.Status = execevent.StatusFilled
	st.DropCopy.CumQty = 100
	st.DropCopy.AvgPx = 1_234_500
	st.DropCopy.LastTransactTime = 50

	m := Mismatch(&st, Tolerances{})
	require.True(t, m.None())
	_, ok := Classify(&st, m, Tolerances{})
	require.False(t, ok)
}

func TestTimingAnomalyWhenOnlyTimestampsDisagree(t *testing.T) {
	var st orderstate.State
	st.Primary.Seen = true
	st.Primary.Status = execevent.StatusFilled
	st.Primary.CumQty = 100
	st.Primary.LastTransactTime = 1000

	st.DropCopy.Seen = true
	st.DropCopy.Status = execevent.StatusFilled
	st.DropCopy.CumQty = 100
	st.DropCopy.LastTransactTime = 0 // dropcopy far earlier than primary

	m := Mismatch(&st, Tolerances{})
	require.True(t, m.None())
	kind, ok := Classify(&st, m, Tolerances{})
	require.True(t, ok)
	require.Equal(t, TimingAnomaly, kind)
}

func TestToleranceSuppressesSmallDifferences(t *testing.T) {
	var st orderstate.State
	st.Primary.Seen = true
	st.Primary.CumQty = 100
	st.DropCopy.Seen = true
	st.DropCopy.CumQty = 101

	m := Mismatch(&st, Tolerances{Qty: 5})
	require.True(t, m.None())
}
