package cmd

import (
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/screeps-adapter/internal/bridge"
	"github.com/Iron-Ham/screeps-adapter/internal/config"
)

var viewsCmd = &cobra.Command{
	Use:   "views",
	Short: "List known client views",
	Long: `List the views that have a legacy event name and the patterns of views that
show a room. Selection changes are only tracked on room views.`,
	Args: cobra.NoArgs,
	RunE: runViews,
}

func init() {
	rootCmd.AddCommand(viewsCmd)
}

func runViews(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	rooms, err := bridge.CompileRoomViews(cfg.Bridge.RoomViews...)
	if err != nil {
		return err
	}

	compat := bridge.CompatViews()
	names := make([]string, 0, len(compat))
	for name := range compat {
		names = append(names, name)
	}
	sort.Strings(names)

	tbl := table.NewWriter()
	tbl.SetOutputMirror(cmd.OutOrStdout())
	tbl.SetStyle(table.StyleLight)
	tbl.SetTitle("Views")
	tbl.AppendHeader(table.Row{"view", "legacy event", "room view"})
	for _, name := range names {
		tbl.AppendRow(table.Row{name, compat[name], yesNo(rooms.Match(name))})
	}
	tbl.AppendSeparator()
	for _, pattern := range cfg.Bridge.RoomViews {
		if _, ok := compat[pattern]; ok {
			continue
		}
		tbl.AppendRow(table.Row{pattern, "", yesNo(true)})
	}
	tbl.Render()
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
