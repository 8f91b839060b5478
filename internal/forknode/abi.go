package forknode

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"sort"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

//go:embed abi/*.json
var abiFiles embed.FS

// loadABI merges the embedded contract interfaces into one ABI. Method and
// event names are unique across the files, so lookups by the operation
// table's method name are unambiguous.
func loadABI() (abi.ABI, error) {
	names, err := fs.Glob(abiFiles, "abi/*.json")
	if err != nil {
		return abi.ABI{}, err
	}
	sort.Strings(names)

	var merged []json.RawMessage
	for _, name := range names {
		data, err := abiFiles.ReadFile(name)
		if err != nil {
			return abi.ABI{}, err
		}
		var entries []json.RawMessage
		if err := json.Unmarshal(data, &entries); err != nil {
			return abi.ABI{}, fmt.Errorf("%s: %w", name, err)
		}
		merged = append(merged, entries...)
	}
	data, err := json.Marshal(merged)
	if err != nil {
		return abi.ABI{}, err
	}
	return abi.JSON(bytes.NewReader(data))
}
