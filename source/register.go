package source

import (
	"context"
	"fmt"

	"github.com/krasninja/querycat-sub000/function"
	"github.com/krasninja/querycat-sub000/logger"
	"github.com/krasninja/querycat-sub000/rows"
	"github.com/krasninja/querycat-sub000/value"
)

func strArg(fn string, idx int, v value.Value) (string, error) {
	if v.IsNull() {
		return "", fmt.Errorf("function %s: argument %d must not be null", fn, idx+1)
	}
	if v.Type() == value.TypeString {
		return v.Str(), nil
	}
	cv, err := value.Cast(v, value.TypeString)
	if err != nil {
		return "", fmt.Errorf("function %s: argument %d: %s", fn, idx+1, err)
	}
	return cv.Str(), nil
}

func strArgs(fn string, min, max int, args []value.Value) ([]string, error) {
	if len(args) < min || len(args) > max {
		return nil, fmt.Errorf("function %s: invalid number of arguments %d", fn, len(args))
	}
	out := make([]string, 0, len(args))
	for idx, a := range args {
		s, err := strArg(fn, idx, a)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Register adds the file connectors to the registry
//
//   read_parquet(path)              rows of a parquet file
//   write_parquet(path)             INTO target writing a parquet file
//   awk(path, program[, separator]) lines printed by an awk program
func Register(r *function.Registry, log *logger.Logger) {
	if log == nil {
		log = logger.Nop()
	}
	log = log.Named("source")

	r.RegisterTable(&function.Table{
		Name: "read_parquet",
		Call: func(_ context.Context, args []value.Value) (value.Value, error) {
			a, err := strArgs("read_parquet", 1, 1, args)
			if err != nil {
				return value.Null, err
			}
			in, err := OpenParquet(a[0])
			if err != nil {
				return value.Null, err
			}
			log.Debugw("parquet opened", "path", a[0], "rows", in.NumRows(), "columns", len(in.Columns()))
			return value.NewObject(rows.Input(in)), nil
		},
	})

	r.RegisterTable(&function.Table{
		Name: "write_parquet",
		Call: func(_ context.Context, args []value.Value) (value.Value, error) {
			a, err := strArgs("write_parquet", 1, 1, args)
			if err != nil {
				return value.Null, err
			}
			return value.NewObject(rows.Output(NewParquetOutput(a[0]))), nil
		},
	})

	r.RegisterTable(&function.Table{
		Name: "awk",
		Call: func(_ context.Context, args []value.Value) (value.Value, error) {
			a, err := strArgs("awk", 2, 3, args)
			if err != nil {
				return value.Null, err
			}
			sep := ""
			if len(a) == 3 {
				sep = a[2]
			}
			in, err := NewAwkInput(a[0], a[1], sep)
			if err != nil {
				return value.Null, err
			}
			log.Debugw("awk program done", "path", a[0], "lines", in.Len(), "columns", len(in.Columns()))
			return value.NewObject(rows.Input(in)), nil
		},
	})
}
