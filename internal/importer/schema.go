package importer

import (
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// tradeRecordSchema is the structural contract for one imported trade
// record. Field aliases (pair/symbol/currency_pair and friends) are
// resolved by the normalizer; the schema pins the types and keeps
// obviously broken records (negative amounts, zero prices) out of the
// ledger before any bookkeeping sees them.
const tradeRecordSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["id"],
  "properties": {
    "id": {"type": ["string", "integer"]},
    "timestamp": {"type": ["string", "number"]},
    "time": {"type": ["string", "number"]},
    "date": {"type": "string"},
    "pair": {"type": "string"},
    "symbol": {"type": "string"},
    "currency_pair": {"type": "string"},
    "action": {"type": "string"},
    "side": {"type": "string"},
    "type": {"type": "string"},
    "amount": {"type": "number", "exclusiveMinimum": 0},
    "volume": {"type": "number", "exclusiveMinimum": 0},
    "size": {"type": "number", "exclusiveMinimum": 0},
    "price": {"type": "number", "exclusiveMinimum": 0},
    "rate": {"type": "number", "exclusiveMinimum": 0},
    "entry_price": {"type": "number", "exclusiveMinimum": 0},
    "fee": {"type": "number", "minimum": 0},
    "profit_loss": {"type": "number"},
    "pnl": {"type": "number"}
  }
}`

func compileSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("trade_record.json", strings.NewReader(tradeRecordSchema)); err != nil {
		panic(err)
	}
	return compiler.MustCompile("trade_record.json")
}
