package sqlite

import (
	"database/sql/driver"
	"fmt"

	"modernc.org/sqlite"

	"github.com/sakif/poit/internal/textfold"
)

// foldFunc is the SQL name of textfold.Fold. Search predicates compare
// poit_fold(column) against an already folded needle, so the filter and the
// result annotation agree on what matches, beyond ASCII.
const foldFunc = "poit_fold"

// Registration is process-wide and applies to every connection the driver
// opens afterwards, so it happens once at package init.
func init() {
	sqlite.MustRegisterDeterministicScalarFunction(foldFunc, 1, foldSQL)
}

func foldSQL(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return textfold.Fold(v), nil
	case []byte:
		return textfold.Fold(string(v)), nil
	default:
		return nil, fmt.Errorf("%s: unsupported argument type %T", foldFunc, v)
	}
}
