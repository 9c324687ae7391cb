package protocol

import (
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/parser"
)

// OperationKind is the coarse classification of a parsed GraphQL operation:
// streaming (subscription) or one-shot (query/mutation).
type OperationKind int

const (
	OperationOneShot OperationKind = iota
	OperationStreaming
)

// ClassifyOperation parses query and determines whether the (possibly named)
// operation it selects is a subscription — per §4.5, this decides the
// streaming-vs-one-shot path before the executor/subscriber is ever called.
// A parse or operation-selection failure is returned as a gqlerror so callers
// can surface it as an Error{id, [err]} frame without a preceding Next, per
// spec.
func ClassifyOperation(query, operationName string) (OperationKind, *gqlerror.Error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: query})
	if err != nil {
		return OperationOneShot, err
	}

	op, selErr := selectOperation(doc.Operations, operationName)
	if selErr != nil {
		return OperationOneShot, selErr
	}

	if op.Operation == ast.Subscription {
		return OperationStreaming, nil
	}
	return OperationOneShot, nil
}

func selectOperation(ops ast.OperationList, name string) (*ast.OperationDefinition, *gqlerror.Error) {
	if len(ops) == 0 {
		return nil, gqlerror.Errorf("no operations found in document")
	}
	if name == "" {
		if len(ops) > 1 {
			return nil, gqlerror.Errorf("operation name is required when the document contains more than one operation")
		}
		return ops[0], nil
	}
	for _, op := range ops {
		if op.Name == name {
			return op, nil
		}
	}
	return nil, gqlerror.Errorf("unknown operation named %q", name)
}
