package model

import (
	"fmt"
	"io"
	"math"
	"strings"
)

const statusWidth = 77

// statusPrinter redraws a single training progress line in place using a
// carriage return, the way interactive training tools report progress.
type statusPrinter struct {
	w io.Writer
}

// fixed formats v right-aligned in width characters, spending the digits
// left over after the integer part on the fraction. Negative values of v
// mean "omitted" and are handled by the caller.
func fixed(v float32, width int) string {
	digits := int(math.Log10(float64(v)+0.999)) + 1
	frac := width - digits
	if frac < 0 {
		frac = 0
	}
	return fmt.Sprintf("%*.*f", width, frac, v)
}

// print writes one status line. progress and the loss/accuracy values are
// skipped when negative; elapsed is skipped when zero.
func (p *statusPrinter) print(epoch, nepochs, progress int, elapsed float64,
	loss, acc, vloss, vacc float32) {

	var b strings.Builder
	if nepochs > 0 {
		w := len(fmt.Sprint(nepochs))
		if w > 5 {
			w = 5
		}
		fmt.Fprintf(&b, "Epoch %*d ", w, epoch)
	}
	if loss != -1 {
		fmt.Fprintf(&b, "Tr loss %s ", fixed(loss, 5))
	}
	if acc != -1 {
		fmt.Fprintf(&b, "acc %s ", fixed(acc, 4))
	}
	if vloss != -1 {
		fmt.Fprintf(&b, "Vd loss %s ", fixed(vloss, 5))
	}
	if vacc != -1 {
		fmt.Fprintf(&b, "acc %s ", fixed(vacc, 4))
	}
	if progress >= 0 && progress < 100 {
		fmt.Fprintf(&b, "%3d%% ", progress)
	}
	if elapsed > 0 {
		fmt.Fprintf(&b, "%.0f seconds", elapsed)
	}
	line := b.String()
	if len(line) < statusWidth {
		line += strings.Repeat(" ", statusWidth-len(line))
	}
	fmt.Fprintf(p.w, "\r%s", line)
}
