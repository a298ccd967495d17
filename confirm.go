package installer

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/pterm/pterm"
)

// Confirmer is the capability behind every interactive yes/no decision. The
// only production implementation reads the terminal; tests inject canned
// answers.
type Confirmer interface {
	Confirm(prompt string) (bool, error)
}

// TerminalConfirmer asks on the live console. Only an explicit "y" or "yes"
// (any case) proceeds; empty input, whitespace, EOF and everything else
// declines. There is deliberately no default answer: this prompt guards the
// erase-everything step.
type TerminalConfirmer struct {
	In  io.Reader
	Out io.Writer
}

func (c TerminalConfirmer) Confirm(prompt string) (bool, error) {
	fmt.Fprintf(c.Out, "%s [y/N] ", prompt)
	line, err := bufio.NewReader(c.In).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// PresentPlan shows the operator what is about to happen to which device.
// Called exactly once per run, immediately before the confirmation prompt.
func PresentPlan(device BlockDevice, reason string, plan PartitionPlan) {
	pterm.DefaultSection.Println("Installation target")
	pterm.Printf("Selected disk: %s (%s) [%s]\n\n", device.Path, HumanSize(device.Size), reason)
	rows := pterm.TableData{{"Partition", "Role", "Filesystem", "Size", "Mount point"}}
	for i, part := range plan.Partitions {
		size := part.Size
		if size == 0 {
			size = plan.RootSize()
		}
		rows = append(rows, []string{
			plan.PartitionPath(i + 1),
			string(part.Role),
			part.Filesystem,
			HumanSize(size),
			part.MountPoint,
		})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
	pterm.Warning.Printf("ALL DATA ON %s WILL BE ERASED.\n", device.Path)
}
