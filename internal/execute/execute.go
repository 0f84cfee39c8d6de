// Package execute implements the "Executing requests" portion of the
// GraphQL specification over gqlparser's AST and gqlgen's runtime types.
// Field resolution is delegated to a FieldResolver looking up (object,
// field) pairs; abstract types are narrowed by a TypeResolver. Errors are
// collected per field through the response context so sibling fields keep
// resolving after a failure.
package execute

import (
	"bytes"
	"context"
	"reflect"
	"time"

	"github.com/99designs/gqlgen/graphql"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/validator"
)

// FieldResolver produces the value of one field. source is the parent
// object (nil at the roots); args are the coerced field arguments.
type FieldResolver func(ctx context.Context, object string, field string, source interface{}, args map[string]interface{}) (interface{}, error)

// TypeResolver names the concrete object type behind a value returned for
// an interface or union field. Empty means unknown.
type TypeResolver func(value interface{}) string

type ExecutionArgs struct {
	Schema         *ast.Schema
	Operation      *ast.OperationDefinition
	VariableValues map[string]interface{}
	FieldResolver  FieldResolver
	TypeResolver   TypeResolver
}

type executionContext struct {
	schema         *ast.Schema
	variableValues map[string]interface{}
	fieldResolver  FieldResolver
	typeResolver   TypeResolver
}

// Execute runs one validated operation to completion and assembles the
// response. The caller must have installed gqlgen operation and response
// contexts. Field errors never abort execution: the field resolves to null,
// the error lands in the response list, and siblings keep going.
func Execute(ctx context.Context, args *ExecutionArgs) *graphql.Response {
	if !graphql.HasOperationContext(ctx) {
		panic("ctx doesn't have OperationContext")
	}

	coerced, gErr := validator.VariableValues(args.Schema, args.Operation, args.VariableValues)
	if gErr != nil {
		return &graphql.Response{Errors: gqlerror.List{gqlerror.WrapIfUnwrapped(gErr)}}
	}

	exe := &executionContext{
		schema:         args.Schema,
		variableValues: coerced,
		fieldResolver:  args.FieldResolver,
		typeResolver:   args.TypeResolver,
	}

	var rootType *ast.Definition
	switch args.Operation.Operation {
	case ast.Query:
		rootType = args.Schema.Query
	case ast.Mutation:
		rootType = args.Schema.Mutation
	}
	if rootType == nil {
		gErr := gqlerror.ErrorPosf(args.Operation.Position, "schema is not configured for %s operations", args.Operation.Operation)
		return &graphql.Response{Errors: gqlerror.List{gErr}}
	}

	fields := graphql.CollectFields(graphql.GetOperationContext(ctx), args.Operation.SelectionSet, exe.satisfies(rootType.Name))
	ctx = graphql.WithFieldContext(ctx, &graphql.FieldContext{Object: rootType.Name})

	// Mutations run serially in document order; query fields are
	// independent of each other and may run concurrently.
	var data graphql.Marshaler
	if args.Operation.Operation == ast.Mutation {
		data = exe.executeFieldsSerially(ctx, rootType, nil, fields)
	} else {
		data = exe.executeFields(ctx, rootType, nil, fields)
	}

	var buf bytes.Buffer
	data.MarshalGQL(&buf)

	return &graphql.Response{
		Data:       buf.Bytes(),
		Errors:     graphql.GetErrors(ctx),
		Extensions: graphql.GetExtensions(ctx),
	}
}

func (exe *executionContext) executeFieldsSerially(ctx context.Context, parentType *ast.Definition, source interface{}, fields []graphql.CollectedField) graphql.Marshaler {
	out := graphql.NewFieldSet(fields)
	for i, field := range fields {
		fctx := exe.fieldContext(ctx, field)
		out.Values[i] = exe.executeField(fctx, parentType, source, field)
	}
	out.Dispatch(ctx)

	return checkBubble(out, fields)
}

func (exe *executionContext) executeFields(ctx context.Context, parentType *ast.Definition, source interface{}, fields []graphql.CollectedField) graphql.Marshaler {
	out := graphql.NewFieldSet(fields)
	for i, field := range fields {
		i, field := i, field
		out.Concurrently(i, func(ctx context.Context) graphql.Marshaler {
			fctx := exe.fieldContext(ctx, field)
			return exe.executeField(fctx, parentType, source, field)
		})
	}
	out.Dispatch(ctx)

	return checkBubble(out, fields)
}

// checkBubble nulls the whole object when a non-nullable child ended up
// null, per the error propagation rules of the spec.
func checkBubble(out *graphql.FieldSet, fields []graphql.CollectedField) graphql.Marshaler {
	for i, field := range fields {
		if field.Definition == nil {
			continue
		}
		if field.Definition.Type.NonNull && out.Values[i] == graphql.Null {
			return graphql.Null
		}
	}
	return out
}

func (exe *executionContext) fieldContext(ctx context.Context, field graphql.CollectedField) context.Context {
	fc := &graphql.FieldContext{
		Object: field.ObjectDefinition.Name,
		Field:  field,
		Args:   field.ArgumentMap(exe.variableValues),
	}
	return graphql.WithFieldContext(ctx, fc)
}

func (exe *executionContext) executeField(ctx context.Context, parentType *ast.Definition, source interface{}, field graphql.CollectedField) graphql.Marshaler {
	fc := graphql.GetFieldContext(ctx)

	if field.Name == "__typename" {
		return graphql.MarshalString(parentType.Name)
	}

	fieldDef := field.Definition
	if fieldDef == nil {
		graphql.AddError(ctx, gqlerror.ErrorPathf(fc.Path(), "field %q is not defined on %s", field.Name, parentType.Name))
		return graphql.Null
	}

	result, err := exe.fieldResolver(ctx, parentType.Name, field.Name, source, fc.Args)
	if err != nil {
		graphql.AddError(ctx, located(fc, err))
		return graphql.Null
	}

	completed, gErr := exe.completeValue(ctx, fieldDef.Type, field, result)
	if gErr != nil {
		graphql.AddError(ctx, gErr)
		return graphql.Null
	}
	return completed
}

// completeValue implements the value completion rules: non-null unwrapping
// with error bubbling, per-item list completion, leaf serialization,
// abstract type narrowing, and sub-selection execution for objects.
func (exe *executionContext) completeValue(ctx context.Context, returnType *ast.Type, field graphql.CollectedField, result interface{}) (graphql.Marshaler, *gqlerror.Error) {
	fc := graphql.GetFieldContext(ctx)

	if err, ok := result.(error); ok && err != nil {
		return graphql.Null, located(fc, err)
	}

	if returnType.NonNull {
		inner := *returnType
		inner.NonNull = false
		completed, gErr := exe.completeValue(ctx, &inner, field, result)
		if gErr != nil {
			return graphql.Null, gErr
		}
		if completed == graphql.Null {
			return graphql.Null, gqlerror.ErrorPathf(fc.Path(), "cannot return null for non-nullable field %s.%s", fc.Object, field.Name)
		}
		return completed, nil
	}

	if isNil(result) {
		return graphql.Null, nil
	}

	if returnType.Elem != nil {
		return exe.completeListValue(ctx, returnType, field, result)
	}

	def := exe.schema.Types[returnType.NamedType]
	if def == nil {
		return graphql.Null, gqlerror.ErrorPathf(fc.Path(), "unknown type %q", returnType.NamedType)
	}

	switch def.Kind {
	case ast.Scalar, ast.Enum:
		return completeLeafValue(fc, result)
	case ast.Interface, ast.Union:
		return exe.completeAbstractValue(ctx, def, field, result)
	case ast.Object:
		return exe.completeObjectValue(ctx, def, field, result)
	default:
		return graphql.Null, gqlerror.ErrorPathf(fc.Path(), "cannot complete value of output type %s", returnType.String())
	}
}

func (exe *executionContext) completeListValue(ctx context.Context, returnType *ast.Type, field graphql.CollectedField, result interface{}) (graphql.Marshaler, *gqlerror.Error) {
	fc := graphql.GetFieldContext(ctx)

	rv := reflect.ValueOf(result)
	if rv.Kind() != reflect.Slice {
		return graphql.Null, gqlerror.ErrorPathf(fc.Path(), "expected a list for field %s.%s", fc.Object, field.Name)
	}

	ret := make(graphql.Array, rv.Len())
	for index := 0; index < rv.Len(); index++ {
		index := index
		item := rv.Index(index).Interface()
		itemCtx := graphql.WithFieldContext(ctx, &graphql.FieldContext{
			Index:  &index,
			Result: item,
		})
		completed, gErr := exe.completeValue(itemCtx, returnType.Elem, field, item)
		if gErr != nil {
			return graphql.Null, gErr
		}
		ret[index] = completed
	}
	return ret, nil
}

func completeLeafValue(fc *graphql.FieldContext, result interface{}) (graphql.Marshaler, *gqlerror.Error) {
	switch result := result.(type) {
	case bool:
		return graphql.MarshalBoolean(result), nil
	case int:
		return graphql.MarshalInt(result), nil
	case int32:
		return graphql.MarshalInt32(result), nil
	case int64:
		return graphql.MarshalInt64(result), nil
	case float64:
		return graphql.MarshalFloat(result), nil
	case string:
		return graphql.MarshalString(result), nil
	case time.Time:
		return graphql.MarshalTime(result), nil
	}

	// enums are string kinds underneath; pointers to leaves reach here
	// when non-nil
	rv := reflect.ValueOf(result)
	for rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.String:
		return graphql.MarshalString(rv.String()), nil
	case reflect.Bool:
		return graphql.MarshalBoolean(rv.Bool()), nil
	case reflect.Int, reflect.Int32, reflect.Int64:
		return graphql.MarshalInt64(rv.Int()), nil
	case reflect.Float64:
		return graphql.MarshalFloat(rv.Float()), nil
	case reflect.Struct:
		if t, ok := rv.Interface().(time.Time); ok {
			return graphql.MarshalTime(t), nil
		}
	}
	return graphql.Null, gqlerror.ErrorPathf(fc.Path(), "unsupported leaf value of type %T", result)
}

func (exe *executionContext) completeAbstractValue(ctx context.Context, abstract *ast.Definition, field graphql.CollectedField, result interface{}) (graphql.Marshaler, *gqlerror.Error) {
	fc := graphql.GetFieldContext(ctx)

	typeName := ""
	if exe.typeResolver != nil {
		typeName = exe.typeResolver(result)
	}
	if typeName == "" {
		return graphql.Null, gqlerror.ErrorPathf(fc.Path(), "abstract type %q could not be resolved to an object type", abstract.Name)
	}

	runtimeType := exe.schema.Types[typeName]
	if runtimeType == nil || runtimeType.Kind != ast.Object {
		return graphql.Null, gqlerror.ErrorPathf(fc.Path(), "abstract type %q resolved to %q, which is not an object type in the schema", abstract.Name, typeName)
	}
	if !exe.possibleType(abstract, runtimeType) {
		return graphql.Null, gqlerror.ErrorPathf(fc.Path(), "%q is not a possible type for %q", typeName, abstract.Name)
	}

	return exe.completeObjectValue(ctx, runtimeType, field, result)
}

func (exe *executionContext) completeObjectValue(ctx context.Context, def *ast.Definition, field graphql.CollectedField, result interface{}) (graphql.Marshaler, *gqlerror.Error) {
	subFields := graphql.CollectFields(graphql.GetOperationContext(ctx), field.SelectionSet, exe.satisfies(def.Name))
	return exe.executeFields(ctx, def, result, subFields), nil
}

// satisfies lists the type names an inline fragment may be conditioned on
// and still apply to the given object type.
func (exe *executionContext) satisfies(typeName string) []string {
	names := []string{typeName}
	for _, def := range exe.schema.Implements[typeName] {
		names = append(names, def.Name)
	}
	return names
}

func (exe *executionContext) possibleType(abstract, concrete *ast.Definition) bool {
	for _, def := range exe.schema.GetPossibleTypes(abstract) {
		if def == concrete {
			return true
		}
	}
	return false
}

// located attaches the field path to an error, preserving any structured
// extensions it already carries.
func located(fc *graphql.FieldContext, err error) *gqlerror.Error {
	if gErr, ok := err.(*gqlerror.Error); ok {
		if len(gErr.Path) == 0 {
			gErr.Path = fc.Path()
		}
		return gErr
	}
	return gqlerror.WrapPath(fc.Path(), err)
}

// isNil treats typed nil pointers, slices and maps like untyped nil.
func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Slice, reflect.Map, reflect.Interface, reflect.Func:
		return rv.IsNil()
	default:
		return false
	}
}
