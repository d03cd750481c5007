package state

import (
	"bytes"
	"crypto/sha256"
	"reflect"
	"sort"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

const MethodSize = 8

type Method [MethodSize]byte

// MethodOf returns the first 8 bytes of sha256("global:" + name), the tag that prefixes
// instruction data for name.
func MethodOf(name string) Method {
	h := sha256.Sum256([]byte("global:" + name))
	var m Method
	copy(m[:], h[:MethodSize])
	return m
}

// Route handles one method. args is the instruction data after the method tag.
type Route func(ctx *Context, args []byte) error

// Router dispatches instruction data to routes by method tag.
type Router struct {
	name   string
	routes map[Method]Route
	names  map[Method]string
}

func NewRouter(name string) *Router {
	return &Router{
		name:   name,
		routes: make(map[Method]Route),
		names:  make(map[Method]string),
	}
}

func (r *Router) AddRoute(method string, route Route) *Router {
	m := MethodOf(method)
	r.routes[m] = route
	r.names[m] = method
	return r
}

func (r *Router) Methods() (methods []string) {
	for _, n := range r.names {
		methods = append(methods, n)
	}
	sort.Strings(methods)
	return methods
}

// Process is the Handler of the routed program.
func (r *Router) Process(ctx *Context) error {
	if len(ctx.Data) < MethodSize {
		return errors.Wrapf(ErrInvalidInstruction, "%v: data too short", r.name)
	}
	var m Method
	copy(m[:], ctx.Data[:MethodSize])

	route, f := r.routes[m]
	if !f {
		log.Errorf("No route is found in %v for %x", r.name, m)
		return errors.Wrapf(ErrInvalidInstruction, "%v: unknown method %x", r.name, m)
	}
	log.Debugf("%v.%v", r.name, r.names[m])
	return route(ctx, ctx.Data[MethodSize:])
}

// EncodeInstruction builds instruction data for method with borsh encoded args. args may be nil.
func EncodeInstruction(method string, args interface{}) ([]byte, error) {
	m := MethodOf(method)
	if args == nil {
		return m[:], nil
	}
	b, err := EncodeArgs(args)
	if err != nil {
		return nil, errors.Wrapf(err, "can't encode %v args", method)
	}
	return append(m[:], b...), nil
}

func EncodeArgs(args interface{}) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := bin.NewBorshEncoder(buf).Encode(reflect.Indirect(reflect.ValueOf(args)).Interface()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeArgs(args []byte, out interface{}) error {
	if err := bin.NewBorshDecoder(args).Decode(out); err != nil {
		return errors.Wrapf(ErrInvalidInstruction, "can't decode args: %v", err)
	}
	return nil
}

// NewInstruction builds an instruction for method of programID.
func NewInstruction(programID solana.PublicKey, method string, args interface{}, metas ...AccountMeta) (Instruction, error) {
	data, err := EncodeInstruction(method, args)
	if err != nil {
		return Instruction{}, err
	}
	return Instruction{ProgramID: programID, Accounts: metas, Data: data}, nil
}
