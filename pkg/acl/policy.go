package acl

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/restbackup/pkg/apierr"
	"github.com/cuemby/restbackup/pkg/types"
)

// policyFile is the on-disk shape of an ACL file:
//
//	default:
//	  "*": read
//	alice/photos:
//	  alice: modify
//	  bob: read
type policyFile map[string]map[string]string

// LoadTable reads and parses an ACL file into a Table. Any row naming
// an unrecognized access level is a fatal load-time error, matching
// the credential store's "malformed input is fatal" rule.
func LoadTable(path string) (Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "failed to read ACL file", err)
	}
	return ParseTable(raw)
}

// ParseTable parses ACL file contents already read into memory.
func ParseTable(raw []byte) (Table, error) {
	var pf policyFile
	if err := yaml.Unmarshal(raw, &pf); err != nil {
		return nil, apierr.Wrap(apierr.Internal, "failed to parse ACL file", err)
	}

	table := make(Table, len(pf))
	for repoPath, users := range pf {
		row := make(map[string]types.AccessLevel, len(users))
		for user, levelStr := range users {
			level, ok := types.ParseAccessLevel(levelStr)
			if !ok {
				return nil, apierr.New(apierr.Internal, "unrecognized ACL access level: "+levelStr)
			}
			row[user] = level
		}
		table[repoPath] = row
	}
	return table, nil
}
