package script

import (
	"eos/internal/dec64"
	"eos/internal/object"
)

// Builtin wraps a native Go function so it can be called like any other
// script function.
type Builtin struct {
	Name string
	Fn   func(e *Evaluator, args ...object.Object) object.Object
}

func (b *Builtin) Type() ObjectTypeAlias { return "BUILTIN" }
func (b *Builtin) Inspect() string       { return "builtin " + b.Name }

// ObjectTypeAlias is a local name for object.ObjectType, used in
// Builtin's Type method so that Builtin satisfies object.Object.
type ObjectTypeAlias = object.ObjectType

var builtins = map[string]*Builtin{
	"len": {
		Name: "len",
		Fn: func(e *Evaluator, args ...object.Object) object.Object {
			if len(args) != 1 {
				return e.newError("len expects 1 argument, got %d", len(args))
			}
			switch arg := args[0].(type) {
			case *object.String:
				return &object.Number{Value: dec64.FromInt(len([]rune(arg.Value)))}
			case *object.List:
				return &object.Number{Value: dec64.FromInt(len(arg.Elements))}
			case *object.Map:
				return &object.Number{Value: dec64.FromInt(len(arg.Keys()))}
			default:
				return e.newError("len not supported for %s", args[0].Type())
			}
		},
	},
	"keys": {
		Name: "keys",
		Fn: func(e *Evaluator, args ...object.Object) object.Object {
			if len(args) != 1 {
				return e.newError("keys expects 1 argument, got %d", len(args))
			}
			m, ok := args[0].(*object.Map)
			if !ok {
				return e.newError("keys expects a map, got %s", args[0].Type())
			}
			return &object.List{Elements: m.Keys()}
		},
	},
}

// hostBuiltins exposes the VM host functions described in spec section
// 4.1 as script-callable builtins, bound to this handler invocation's
// Host.
func hostBuiltins(host Host) map[string]*Builtin {
	return map[string]*Builtin{
		"send": {
			Name: "send",
			Fn: func(e *Evaluator, args ...object.Object) object.Object {
				if len(args) != 2 {
					return e.newError("send expects 2 arguments (to, value), got %d", len(args))
				}
				to, ok := args[0].(*object.String)
				if !ok {
					return e.newError("send: to must be a string, got %s", args[0].Type())
				}
				host.Send(to.Value, args[1])
				return &object.Nil{}
			},
		},
		"store": {
			Name: "store",
			Fn: func(e *Evaluator, args ...object.Object) object.Object {
				if len(args) != 3 {
					return e.newError("store expects 3 arguments (bucket, key, value), got %d", len(args))
				}
				bucket, key, ok := stringPair(args[0], args[1])
				if !ok {
					return e.newError("store: bucket and key must be strings")
				}
				if err := host.Store(bucket, key, args[2]); err != nil {
					return e.newError("store failed: %s", err)
				}
				return &object.Nil{}
			},
		},
		"load": {
			Name: "load",
			Fn: func(e *Evaluator, args ...object.Object) object.Object {
				if len(args) != 2 {
					return e.newError("load expects 2 arguments (bucket, key), got %d", len(args))
				}
				bucket, key, ok := stringPair(args[0], args[1])
				if !ok {
					return e.newError("load: bucket and key must be strings")
				}
				val, found, err := host.Load(bucket, key)
				if err != nil {
					return e.newError("load failed: %s", err)
				}
				if !found {
					return &object.Nil{}
				}
				return val
			},
		},
		"delete": {
			Name: "delete",
			Fn: func(e *Evaluator, args ...object.Object) object.Object {
				if len(args) != 2 {
					return e.newError("delete expects 2 arguments (bucket, key), got %d", len(args))
				}
				bucket, key, ok := stringPair(args[0], args[1])
				if !ok {
					return e.newError("delete: bucket and key must be strings")
				}
				if err := host.Delete(bucket, key); err != nil {
					return e.newError("delete failed: %s", err)
				}
				return &object.Nil{}
			},
		},
		"exists": {
			Name: "exists",
			Fn: func(e *Evaluator, args ...object.Object) object.Object {
				if len(args) != 2 {
					return e.newError("exists expects 2 arguments (bucket, key), got %d", len(args))
				}
				bucket, key, ok := stringPair(args[0], args[1])
				if !ok {
					return e.newError("exists: bucket and key must be strings")
				}
				found, err := host.Exists(bucket, key)
				if err != nil {
					return e.newError("exists failed: %s", err)
				}
				return nativeBoolToBoolean(found)
			},
		},
		"plot": {
			Name: "plot",
			Fn: func(e *Evaluator, args ...object.Object) object.Object {
				if len(args) != 1 {
					return e.newError("plot expects 1 argument (line), got %d", len(args))
				}
				s, ok := args[0].(*object.String)
				if !ok {
					return e.newError("plot: argument must be a string")
				}
				host.Plot(s.Value)
				return &object.Nil{}
			},
		},
	}
}

func stringPair(a, b object.Object) (string, string, bool) {
	as, ok1 := a.(*object.String)
	bs, ok2 := b.(*object.String)
	if !ok1 || !ok2 {
		return "", "", false
	}
	return as.Value, bs.Value, true
}
