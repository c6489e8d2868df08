package execution

import (
	"fmt"
	"io"
	"strings"
)

// Print writes one line per record, "i_<slot> = <op>", where operands are
// referred to by slot and absent operands print as [].
func (p *Plan) Print(w io.Writer) error {
	var b strings.Builder
	for i, r := range p.Records {
		args := make([]string, len(r.Ch))
		for k, slot := range r.Ch {
			if slot == Absent {
				args[k] = "[]"
				continue
			}
			args[k] = fmt.Sprintf("i_%d", slot)
		}
		fmt.Fprintf(&b, "i_%d = ", i)
		r.MX.Node().Print(&b, args)
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func (p *Plan) String() string {
	var b strings.Builder
	_ = p.Print(&b)
	return b.String()
}
