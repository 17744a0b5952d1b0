// Package export lists the function symbols of a linked executable in the
// symbol record format, for games that shipped with their symbol table.
package export

import (
	"github.com/wiisym/wiisym/pkg/model"
	"github.com/wiisym/wiisym/pkg/objfile"
)

// Symbols returns one record per function symbol of obj, in symbol table
// order.
func Symbols(obj *objfile.Object) []model.MatchRecord {
	records := make([]model.MatchRecord, 0, len(obj.Symbols))
	for _, sym := range obj.Symbols {
		value := sym.Value
		if value >= obj.TextAddr {
			value -= obj.TextAddr
		}
		records = append(records, model.MatchRecord{
			Position: obj.TextAddr + value,
			Length:   int(sym.Size),
			Symbol:   sym.Name,
		})
	}
	return records
}
