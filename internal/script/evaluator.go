package script

import (
	"fmt"

	"eos/internal/ast"
	"eos/internal/dec64"
	"eos/internal/lexer"
	"eos/internal/object"
)

// Host is implemented by the scheduler and provides the side-effecting
// functions a script handler may call (spec section 4.1): `send`,
// `store`/`load`/`delete`/`exists`, and `plot`.
type Host interface {
	Send(to string, payload object.Object)
	Store(bucket, key string, value object.Object) error
	Load(bucket, key string) (object.Object, bool, error)
	Delete(bucket, key string) error
	Exists(bucket, key string) (bool, error)
	Plot(line string)
}

// EvalError is returned for both compile (parse) and runtime failures;
// the caller treats both uniformly per spec section 7 (ScriptCompile /
// ScriptRuntime never fail a tick, they only abort the one handler
// invocation that raised them).
type EvalError struct {
	Message string
}

func (e *EvalError) Error() string { return e.Message }

// Evaluator is a fresh, single-use tree-walking interpreter. The
// scheduler constructs one per handler invocation (spec section 4.1:
// "per-handler-invocation fresh VM"), so no state leaks between actors
// or between ticks.
type Evaluator struct {
	host Host
	env  *object.Environment
}

func NewEvaluator(host Host) *Evaluator {
	return &Evaluator{host: host, env: object.NewEnvironment()}
}

// parse parses source without ever needing a Host; used by RunInit
// and RunHandle to share one parse/error path.
func parse(src string) (*ast.Program, error) {
	l := lexer.New(src)
	p := New(l)
	prog := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		return nil, &EvalError{Message: errs[0].Message}
	}
	return prog, nil
}

// RunInit evaluates the script's top-level declarations and, if an
// `init` function exists, calls it with no arguments. Absent `init`,
// the actor's initial state is an empty map (spec section 4.1).
func RunInit(host Host, scriptSrc string) (object.Object, error) {
	prog, err := parse(scriptSrc)
	if err != nil {
		return nil, err
	}

	e := NewEvaluator(host)
	if err := e.loadTopLevel(prog); err != nil {
		return nil, err
	}

	initFn, ok := e.env.Get("init")
	if !ok {
		return object.NewMap(), nil
	}
	fn, ok := initFn.(*object.Function)
	if !ok {
		return nil, &EvalError{Message: "init is not a function"}
	}

	result := e.applyFunction(0, fn, nil)
	if errObj, ok := result.(*object.Error); ok {
		return nil, &EvalError{Message: errObj.Message}
	}
	return unwrapReturn(result), nil
}

// HandleResult is the return of RunHandle: the new state, and an
// optional response payload (present whenever the handler returned a
// two-element (state, response) list; whether a reply is actually sent
// to the message's `from` is decided by the scheduler).
type HandleResult struct {
	State    object.Object
	Response object.Object
	HasReply bool
}

// RunHandle evaluates the script's `handle(state, message)` function
// and returns the updated state plus an optional synthesized reply
// (spec section 4.1).
func RunHandle(host Host, scriptSrc string, state object.Object, message object.Object) (HandleResult, error) {
	prog, err := parse(scriptSrc)
	if err != nil {
		return HandleResult{}, err
	}

	e := NewEvaluator(host)
	if err := e.loadTopLevel(prog); err != nil {
		return HandleResult{}, err
	}

	handleFn, ok := e.env.Get("handle")
	if !ok {
		return HandleResult{}, &EvalError{Message: "script has no handle function"}
	}
	fn, ok := handleFn.(*object.Function)
	if !ok {
		return HandleResult{}, &EvalError{Message: "handle is not a function"}
	}

	result := e.applyFunction(0, fn, []object.Object{state, message})
	if errObj, ok := result.(*object.Error); ok {
		return HandleResult{}, &EvalError{Message: errObj.Message}
	}
	result = unwrapReturn(result)

	// A bare state return, or a (state, response) tuple represented as
	// a two-element list.
	if lst, ok := result.(*object.List); ok && len(lst.Elements) == 2 {
		return HandleResult{State: lst.Elements[0], Response: lst.Elements[1], HasReply: true}, nil
	}
	return HandleResult{State: result}, nil
}

func unwrapReturn(obj object.Object) object.Object {
	if rv, ok := obj.(*object.ReturnValue); ok {
		return rv.Value
	}
	return obj
}

// loadTopLevel executes every top-level statement (mainly function and
// var declarations) into the evaluator's environment.
func (e *Evaluator) loadTopLevel(prog *ast.Program) error {
	for _, stmt := range prog.Statements {
		result := e.Eval(stmt, e.env)
		if errObj, ok := result.(*object.Error); ok {
			return &EvalError{Message: errObj.Message}
		}
	}
	return nil
}

func (e *Evaluator) newError(format string, a ...interface{}) *object.Error {
	return &object.Error{Message: fmt.Sprintf(format, a...)}
}

func (e *Evaluator) Eval(node ast.Node, env *object.Environment) object.Object {
	switch n := node.(type) {
	case *ast.Program:
		return e.evalProgram(n, env)
	case *ast.ExpressionStatement:
		return e.Eval(n.Expression, env)
	case *ast.BlockStatement:
		return e.evalBlockStatement(n, env)
	case *ast.VarStatement:
		val := e.Eval(n.Value, env)
		if isError(val) {
			return val
		}
		env.Set(n.Name.Value, val)
		return val
	case *ast.AssignStatement:
		val := e.Eval(n.Value, env)
		if isError(val) {
			return val
		}
		if _, ok := env.Get(n.Name.Value); !ok {
			return e.newError("identifier not found: %s", n.Name.Value)
		}
		env.Set(n.Name.Value, val)
		return val
	case *ast.ReturnStatement:
		if n.ReturnValue == nil {
			return &object.ReturnValue{Value: &object.Nil{}}
		}
		val := e.Eval(n.ReturnValue, env)
		if isError(val) {
			return val
		}
		return &object.ReturnValue{Value: val}
	case *ast.NumberLiteral:
		d, err := dec64.FromString(n.Value)
		if err != nil {
			return e.newError("invalid number literal: %s", n.Value)
		}
		return &object.Number{Value: d}
	case *ast.StringLiteral:
		return &object.String{Value: n.Value}
	case *ast.BooleanLiteral:
		return nativeBoolToBoolean(n.Value)
	case *ast.NilLiteral:
		return &object.Nil{}
	case *ast.Identifier:
		return e.evalIdentifier(n, env)
	case *ast.ListLiteral:
		elems := e.evalExpressions(n.Elements, env)
		if len(elems) == 1 && isError(elems[0]) {
			return elems[0]
		}
		return &object.List{Elements: elems}
	case *ast.MapLiteral:
		return e.evalMapLiteral(n, env)
	case *ast.PrefixExpression:
		right := e.Eval(n.Right, env)
		if isError(right) {
			return right
		}
		return e.evalPrefixExpression(n.Operator, right)
	case *ast.InfixExpression:
		return e.evalInfixExpression(n, env)
	case *ast.IfExpression:
		return e.evalIfExpression(n, env)
	case *ast.FunctionLiteral:
		fn := &object.Function{Name: n.Name, Parameters: n.Parameters, Body: n.Body, Env: env}
		if n.Name != "" {
			env.Set(n.Name, fn)
		}
		return fn
	case *ast.CallExpression:
		return e.evalCallExpression(n, env)
	case *ast.IndexExpression:
		return e.evalIndexExpression(n, env)
	case *ast.DotExpression:
		return e.evalDotExpression(n, env)
	}
	return e.newError("unsupported syntax node: %T", node)
}

func (e *Evaluator) evalProgram(prog *ast.Program, env *object.Environment) object.Object {
	var result object.Object = &object.Nil{}
	for _, stmt := range prog.Statements {
		result = e.Eval(stmt, env)
		switch result.(type) {
		case *object.ReturnValue:
			return result
		case *object.Error:
			return result
		}
	}
	return result
}

func (e *Evaluator) evalBlockStatement(block *ast.BlockStatement, env *object.Environment) object.Object {
	var result object.Object = &object.Nil{}
	for _, stmt := range block.Statements {
		result = e.Eval(stmt, env)
		if result != nil {
			switch result.(type) {
			case *object.ReturnValue, *object.Error:
				return result
			}
		}
	}
	return result
}

func (e *Evaluator) evalExpressions(exps []ast.Expression, env *object.Environment) []object.Object {
	var result []object.Object
	for _, exp := range exps {
		val := e.Eval(exp, env)
		if isError(val) {
			return []object.Object{val}
		}
		result = append(result, val)
	}
	return result
}

func (e *Evaluator) evalMapLiteral(n *ast.MapLiteral, env *object.Environment) object.Object {
	m := object.NewMap()
	for i, keyExpr := range n.Keys {
		var key object.Object
		if ident, ok := keyExpr.(*ast.Identifier); ok {
			key = &object.String{Value: ident.Value}
		} else {
			key = e.Eval(keyExpr, env)
		}
		if isError(key) {
			return key
		}
		hashKey, ok := key.(object.Hashable)
		if !ok {
			return e.newError("unusable as map key: %s", key.Type())
		}
		val := e.Eval(n.Values[i], env)
		if isError(val) {
			return val
		}
		m.Put(hashKey, val)
	}
	return m
}

func (e *Evaluator) evalIdentifier(n *ast.Identifier, env *object.Environment) object.Object {
	if val, ok := env.Get(n.Value); ok {
		return val
	}
	if builtin, ok := builtins[n.Value]; ok {
		return builtin
	}
	if e.host != nil {
		if hostFn, ok := hostBuiltins(e.host)[n.Value]; ok {
			return hostFn
		}
	}
	return e.newError("identifier not found: %s", n.Value)
}

func (e *Evaluator) evalPrefixExpression(op string, right object.Object) object.Object {
	switch op {
	case "!":
		return nativeBoolToBoolean(!isTruthy(right))
	case "-":
		num, ok := right.(*object.Number)
		if !ok {
			return e.newError("unknown operator: -%s", right.Type())
		}
		return &object.Number{Value: num.Value.Neg()}
	default:
		return e.newError("unknown operator: %s%s", op, right.Type())
	}
}

func (e *Evaluator) evalInfixExpression(n *ast.InfixExpression, env *object.Environment) object.Object {
	// short-circuit boolean operators
	if n.Operator == "&&" || n.Operator == "||" {
		left := e.Eval(n.Left, env)
		if isError(left) {
			return left
		}
		leftTruthy := isTruthy(left)
		if n.Operator == "&&" && !leftTruthy {
			return nativeBoolToBoolean(false)
		}
		if n.Operator == "||" && leftTruthy {
			return nativeBoolToBoolean(true)
		}
		right := e.Eval(n.Right, env)
		if isError(right) {
			return right
		}
		return nativeBoolToBoolean(isTruthy(right))
	}

	left := e.Eval(n.Left, env)
	if isError(left) {
		return left
	}
	right := e.Eval(n.Right, env)
	if isError(right) {
		return right
	}

	switch {
	case left.Type() == object.NUMBER_OBJ && right.Type() == object.NUMBER_OBJ:
		return e.evalNumberInfix(n.Operator, left.(*object.Number), right.(*object.Number))
	case left.Type() == object.STRING_OBJ && right.Type() == object.STRING_OBJ:
		return e.evalStringInfix(n.Operator, left.(*object.String), right.(*object.String))
	case n.Operator == "==":
		return nativeBoolToBoolean(objectsEqual(left, right))
	case n.Operator == "!=":
		return nativeBoolToBoolean(!objectsEqual(left, right))
	default:
		return e.newError("type mismatch: %s %s %s", left.Type(), n.Operator, right.Type())
	}
}

func (e *Evaluator) evalNumberInfix(op string, left, right *object.Number) object.Object {
	switch op {
	case "+":
		return &object.Number{Value: left.Value.Add(right.Value)}
	case "-":
		return &object.Number{Value: left.Value.Sub(right.Value)}
	case "*":
		return &object.Number{Value: left.Value.Mul(right.Value)}
	case "/":
		return &object.Number{Value: left.Value.Div(right.Value, 10, dec64.RoundHalfUp)}
	case "%":
		return &object.Number{Value: left.Value.Mod(right.Value)}
	case "<":
		return nativeBoolToBoolean(left.Value.Lt(right.Value))
	case "<=":
		return nativeBoolToBoolean(left.Value.Lte(right.Value))
	case ">":
		return nativeBoolToBoolean(left.Value.Gt(right.Value))
	case ">=":
		return nativeBoolToBoolean(left.Value.Gte(right.Value))
	case "==":
		return nativeBoolToBoolean(left.Value.Eq(right.Value))
	case "!=":
		return nativeBoolToBoolean(left.Value.Neq(right.Value))
	default:
		return e.newError("unknown operator: %s %s %s", left.Type(), op, right.Type())
	}
}

func (e *Evaluator) evalStringInfix(op string, left, right *object.String) object.Object {
	switch op {
	case "+":
		return &object.String{Value: left.Value + right.Value}
	case "==":
		return nativeBoolToBoolean(left.Value == right.Value)
	case "!=":
		return nativeBoolToBoolean(left.Value != right.Value)
	default:
		return e.newError("unknown operator: %s %s %s", left.Type(), op, right.Type())
	}
}

func (e *Evaluator) evalIfExpression(n *ast.IfExpression, env *object.Environment) object.Object {
	cond := e.Eval(n.Condition, env)
	if isError(cond) {
		return cond
	}
	if isTruthy(cond) {
		return e.evalBlockStatement(n.Consequence, object.NewEnclosedEnvironment(env))
	} else if n.Alternative != nil {
		return e.evalBlockStatement(n.Alternative, object.NewEnclosedEnvironment(env))
	}
	return &object.Nil{}
}

func (e *Evaluator) evalCallExpression(n *ast.CallExpression, env *object.Environment) object.Object {
	fn := e.Eval(n.Function, env)
	if isError(fn) {
		return fn
	}
	args := e.evalExpressions(n.Arguments, env)
	if len(args) == 1 && isError(args[0]) {
		return args[0]
	}
	return e.applyFunction(n.Token.Position, fn, args)
}

func (e *Evaluator) applyFunction(pos int, fn object.Object, args []object.Object) object.Object {
	switch f := fn.(type) {
	case *object.Function:
		extEnv := object.NewEnclosedEnvironment(f.Env)
		for i, param := range f.Parameters {
			if i < len(args) {
				extEnv.Set(param.Value, args[i])
			} else {
				extEnv.Set(param.Value, &object.Nil{})
			}
		}
		result := e.evalBlockStatement(f.Body, extEnv)
		return unwrapReturn(result)
	case *Builtin:
		return f.Fn(e, args...)
	default:
		return e.newError("not a function: %s", fn.Type())
	}
}

func (e *Evaluator) evalIndexExpression(n *ast.IndexExpression, env *object.Environment) object.Object {
	left := e.Eval(n.Left, env)
	if isError(left) {
		return left
	}
	index := e.Eval(n.Index, env)
	if isError(index) {
		return index
	}

	switch container := left.(type) {
	case *object.List:
		idx, ok := index.(*object.Number)
		if !ok {
			return e.newError("list index must be a number, got %s", index.Type())
		}
		i := idx.Value.ToInt()
		if i < 0 || i >= len(container.Elements) {
			return &object.Nil{}
		}
		return container.Elements[i]
	case *object.Map:
		key, ok := index.(object.Hashable)
		if !ok {
			return e.newError("unusable as map key: %s", index.Type())
		}
		val, ok := container.Get(key)
		if !ok {
			return &object.Nil{}
		}
		return val
	default:
		return e.newError("index operator not supported: %s", left.Type())
	}
}

func (e *Evaluator) evalDotExpression(n *ast.DotExpression, env *object.Environment) object.Object {
	left := e.Eval(n.Left, env)
	if isError(left) {
		return left
	}
	m, ok := left.(*object.Map)
	if !ok {
		return e.newError("field access on non-map: %s", left.Type())
	}
	val, ok := m.Get(&object.String{Value: n.Field})
	if !ok {
		return &object.Nil{}
	}
	return val
}

func isError(obj object.Object) bool {
	if obj == nil {
		return false
	}
	return obj.Type() == object.ERROR_OBJ
}

func isTruthy(obj object.Object) bool {
	switch o := obj.(type) {
	case *object.Nil:
		return false
	case *object.Boolean:
		return o.Value
	default:
		return true
	}
}

func nativeBoolToBoolean(b bool) *object.Boolean {
	if b {
		return trueObj
	}
	return falseObj
}

var (
	trueObj  = &object.Boolean{Value: true}
	falseObj = &object.Boolean{Value: false}
)

func objectsEqual(a, b object.Object) bool {
	if a.Type() != b.Type() {
		return false
	}
	switch av := a.(type) {
	case *object.Nil:
		return true
	case *object.Boolean:
		return av.Value == b.(*object.Boolean).Value
	case *object.String:
		return av.Value == b.(*object.String).Value
	case *object.Number:
		return av.Value.Eq(b.(*object.Number).Value)
	default:
		return a.Inspect() == b.Inspect()
	}
}
