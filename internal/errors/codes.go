package errors

// Error codes for the Kanso EVM backend
// These codes are used in error messages and documentation
// to provide consistent error identification across the toolchain.
//
// Error code ranges:
// E1000-E1099: Name and type resolution errors
// E1100-E1199: Type inference errors
// E1200-E1299: Storage layout errors
// E1300-E1399: Block dependency errors
// E1400-E1499: Block argument balancing errors
// E1500-E1599: Assembly errors
// E1600-E1699: Execution errors
// E1900-E1999: IR text format errors

// Kind groups error codes into the taxonomy every pass reports in
type Kind string

const (
	KindResolution    Kind = "ResolutionError"
	KindTypeInference Kind = "TypeInferenceError"
	KindStorageLayout Kind = "StorageLayoutError"
	KindDependency    Kind = "DependencyError"
	KindBalancing     Kind = "BalancingError"
	KindAssembly      Kind = "AssemblyError"
	KindExecution     Kind = "ExecutionError"
	KindSyntax        Kind = "SyntaxError"
)

const (
	// E1001: Two types share a name
	ErrorDuplicateType = "E1001"

	// E1002: Type reference does not name a known type
	ErrorUnresolvedType = "E1002"

	// E1003: Identifier resolved twice to different names
	ErrorResolvedTwice = "E1003"

	// E1004: Two definitions share a name in one scope
	ErrorDuplicateDefinition = "E1004"

	// E1005: Call to a function that does not exist
	ErrorUndefinedFunction = "E1005"

	// E1006: Constructor tag not owned by any variant
	ErrorUnknownConstructor = "E1006"

	// E1007: Type declaration with no fields or constructors, or a repeated tag
	ErrorMalformedType = "E1007"

	// E1101: No inference rule applies
	ErrorCannotInferType = "E1101"

	// E1102: Operand types disagree
	ErrorTypeMismatch = "E1102"

	// E1201: Field referenced without an allocated slot
	ErrorUnresolvedStorage = "E1201"

	// E1202: Field declared twice
	ErrorDuplicateField = "E1202"

	// E1301: Use without reaching definition
	ErrorUseBeforeDefinition = "E1301"

	// E1302: Entry block requires arguments
	ErrorEntryLiveIn = "E1302"

	// E1303: Jump to a block the function does not own
	ErrorUnknownBlock = "E1303"

	// E1401: Predecessor cannot supply an argument
	ErrorUnbalancedArgument = "E1401"

	// E1501: Label never defined
	ErrorUnresolvedLabel = "E1501"

	// E1502: Two functions share a selector
	ErrorSelectorCollision = "E1502"

	// E1503: Bytecode does not fit 16-bit jump offsets
	ErrorCodeTooLarge = "E1503"

	// E1504: Construct the assembler cannot lower
	ErrorUnsupported = "E1504"

	// E1505: Operand not available in the block at assembly time
	ErrorUnboundOperand = "E1505"

	// E1506: Assembler label placed twice
	ErrorDuplicateLabel = "E1506"

	// E1601: Interpreter refused to run the call
	ErrorInterpreter = "E1601"

	// E1602: Call names an unknown function or wrong arguments
	ErrorInvalidCall = "E1602"

	// E1901: IR text does not parse
	ErrorSyntax = "E1901"
)

// GetErrorDescription returns a human-readable description of the error code
func GetErrorDescription(code string) string {
	switch code {
	case ErrorDuplicateType:
		return "Type name is declared more than once"
	case ErrorUnresolvedType:
		return "Type reference does not name a declared or built-in type"
	case ErrorResolvedTwice:
		return "Identifier was already resolved to a different name"
	case ErrorDuplicateDefinition:
		return "Name is defined more than once in the same scope"
	case ErrorUndefinedFunction:
		return "Called function is not defined"
	case ErrorUnknownConstructor:
		return "Constructor does not belong to any variant type"
	case ErrorMalformedType:
		return "Type declaration is empty or repeats a constructor"
	case ErrorCannotInferType:
		return "Type of identifier cannot be inferred"
	case ErrorTypeMismatch:
		return "Operand types are incompatible"
	case ErrorUnresolvedStorage:
		return "Storage field has no allocated slot"
	case ErrorDuplicateField:
		return "Storage field is declared more than once"
	case ErrorUseBeforeDefinition:
		return "Value is used without a reaching definition"
	case ErrorEntryLiveIn:
		return "Entry block cannot receive block arguments"
	case ErrorUnknownBlock:
		return "Jump target is not a block of this function"
	case ErrorUnbalancedArgument:
		return "Predecessor cannot supply a required block argument"
	case ErrorUnresolvedLabel:
		return "Label is referenced but never defined"
	case ErrorSelectorCollision:
		return "Two functions have the same selector"
	case ErrorCodeTooLarge:
		return "Bytecode exceeds the addressable jump range"
	case ErrorUnsupported:
		return "Construct cannot be lowered to bytecode"
	case ErrorUnboundOperand:
		return "Operand is not defined in the block that uses it"
	case ErrorDuplicateLabel:
		return "Assembler label is placed more than once"
	case ErrorInterpreter:
		return "Interpreter failed to execute the call"
	case ErrorInvalidCall:
		return "Call does not match any function signature"
	case ErrorSyntax:
		return "IR text does not parse"
	default:
		return "Unknown error code"
	}
}

// KindOf returns the taxonomy kind an error code belongs to
func KindOf(code string) Kind {
	switch {
	case code >= "E1000" && code < "E1100":
		return KindResolution
	case code >= "E1100" && code < "E1200":
		return KindTypeInference
	case code >= "E1200" && code < "E1300":
		return KindStorageLayout
	case code >= "E1300" && code < "E1400":
		return KindDependency
	case code >= "E1400" && code < "E1500":
		return KindBalancing
	case code >= "E1500" && code < "E1600":
		return KindAssembly
	case code >= "E1600" && code < "E1700":
		return KindExecution
	default:
		return KindSyntax
	}
}
