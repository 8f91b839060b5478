package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/forkbench/internal/config"
)

// NetworkInfo describes one profile.
type NetworkInfo struct {
	Name    string   `json:"name"`
	Default bool     `json:"default"`
	Backend string   `json:"backend"`
	URL     string   `json:"url,omitempty"`
	Flavor  string   `json:"flavor,omitempty"`
	Recipe  string   `json:"recipe"`
	Assets  []string `json:"assets"`
}

// NewNetworksCommand creates the networks command.
func NewNetworksCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "networks",
		Short:         "List network profiles",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNetworks(rootOpts, cmd)
		},
	}
}

func runNetworks(opts *RootOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		return f.Fail(ErrCodeConfig, asExitError(err))
	}

	out := make([]NetworkInfo, 0, len(cfg.Profiles))
	for _, name := range cfg.Names() {
		p := cfg.Profiles[name]
		info := NetworkInfo{
			Name:    name,
			Default: name == cfg.DefaultNetwork,
			Backend: string(p.Backend),
			Recipe:  p.Recipe,
			Assets:  p.AssetSymbols(),
		}
		if p.Backend == config.BackendRPC {
			info.URL = p.URL
			info.Flavor = p.Flavor
		}
		out = append(out, info)
	}

	if f.JSON() {
		return f.Success(out)
	}
	for _, n := range out {
		mark := " "
		if n.Default {
			mark = "*"
		}
		where := "simulated"
		if n.URL != "" {
			where = fmt.Sprintf("%s (%s)", n.URL, n.Flavor)
		}
		fmt.Fprintf(f.Writer, "%s %-10s %-4s %-32s recipe=%s assets=%v\n", mark, n.Name, n.Backend, where, n.Recipe, n.Assets)
	}
	return nil
}
