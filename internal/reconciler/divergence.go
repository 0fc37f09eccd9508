package reconciler

import (
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/classifier"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/orderstate"
)

// DivergenceRecord is the emitted record pushed onto the divergence ring,
// grounded on spec.md §3's "Divergence record" and §6's v1 wire payload.
type DivergenceRecord struct {
	Fingerprint uint64
	Kind        classifier.DivergenceKind
	Mask        orderstate.MismatchMask
	Primary     orderstate.SideView
	DropCopy    orderstate.SideView
	DetectNanos int64
}
