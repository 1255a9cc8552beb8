package builtins

// BuiltinType represents the base types every contract can refer to without declaring them
type BuiltinType string

const (
	// Unsigned integers
	Uint8   BuiltinType = "Uint8"
	Uint16  BuiltinType = "Uint16"
	Uint32  BuiltinType = "Uint32"
	Uint64  BuiltinType = "Uint64"
	Uint128 BuiltinType = "Uint128"
	Uint256 BuiltinType = "Uint256"

	// Other primitives
	Bool    BuiltinType = "Bool"
	Address BuiltinType = "Address"
	String  BuiltinType = "String"
)

// Bool constructors in tag order. The tag index is the runtime word value,
// so False must stay first.
const (
	BoolFalse = "False"
	BoolTrue  = "True"
)

// BuiltinInfo describes how a base type maps onto a 256-bit machine word
type BuiltinInfo struct {
	Name    BuiltinType
	Bits    int    // significant bits of the word, 0 for non-numeric values
	ABIName string // canonical ABI type name used in signatures
}

// BuiltinTypes contains all valid built-in types
var BuiltinTypes = map[string]BuiltinInfo{
	// Unsigned integers
	string(Uint8):   {Name: Uint8, Bits: 8, ABIName: "uint8"},
	string(Uint16):  {Name: Uint16, Bits: 16, ABIName: "uint16"},
	string(Uint32):  {Name: Uint32, Bits: 32, ABIName: "uint32"},
	string(Uint64):  {Name: Uint64, Bits: 64, ABIName: "uint64"},
	string(Uint128): {Name: Uint128, Bits: 128, ABIName: "uint128"},
	string(Uint256): {Name: Uint256, Bits: 256, ABIName: "uint256"},

	// Other primitives
	string(Bool):    {Name: Bool, Bits: 1, ABIName: "bool"},
	string(Address): {Name: Address, Bits: 160, ABIName: "address"},
	string(String):  {Name: String, ABIName: "string"},
}

// Ordered lists the built-in type names in a stable order for table seeding
var Ordered = []BuiltinType{Uint8, Uint16, Uint32, Uint64, Uint128, Uint256, Bool, Address, String}

// IsBuiltinType checks if a type name is a built-in type
func IsBuiltinType(typeName string) bool {
	_, ok := BuiltinTypes[typeName]
	return ok
}

// IsIntegerType checks if a type is an unsigned integer type
func IsIntegerType(typeName string) bool {
	switch BuiltinType(typeName) {
	case Uint8, Uint16, Uint32, Uint64, Uint128, Uint256:
		return true
	default:
		return false
	}
}

// ABIName returns the canonical ABI name of a built-in type and false for anything else
func ABIName(typeName string) (string, bool) {
	info, ok := BuiltinTypes[typeName]
	if !ok {
		return "", false
	}
	return info.ABIName, true
}

// Bits returns the word width of a built-in type, 0 when unknown
func Bits(typeName string) int {
	return BuiltinTypes[typeName].Bits
}
