package reflection_test

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/junioryono/ioc/internal/reflection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test types
type Database struct {
	ConnectionString string
}

type Logger interface {
	Log(msg string)
}

type UserService struct {
	DB     *Database
	Logger Logger
}

// Test constructors
func NewDatabase(connStr string) *Database {
	return &Database{ConnectionString: connStr}
}

func NewUserService(db *Database, logger Logger) *UserService {
	return &UserService{DB: db, Logger: logger}
}

func NewUserServiceWithError(db *Database) (*UserService, error) {
	if db == nil {
		return nil, errors.New("database is required")
	}
	return &UserService{DB: db}, nil
}

// In parameter object
type ServiceParams struct {
	reflection.In

	Database *Database
	Logger   Logger    `optional:"true"`
	Cache    *Database `name:"cache"`
	Skipped  string    `inject:"-"`
	hidden   int
}

func NewServiceWithParams(params ServiceParams) *UserService {
	return &UserService{DB: params.Database, Logger: params.Logger}
}

type Handler struct {
	DB      *Database `inject:""`
	Replica *Database `inject:"replica"`
	Logger  Logger    `inject:"" optional:"true"`
	Name    string
	Ignored *Database `inject:"-"`
}

type badHandler struct {
	db *Database `inject:""`
}

type WidgetFactory struct {
	Create     func() (*UserService, error)
	CreateFor  func(db *Database) *UserService
	CreateKey  func(key string, db *Database) *UserService `ioc:"key"`
	CreateAll  func() []Logger
	unexported func() *Database
}

func TestAnalyzer_SimpleConstructor(t *testing.T) {
	analyzer := reflection.New()

	info, err := analyzer.Analyze(NewDatabase)
	require.NoError(t, err)

	assert.False(t, info.IsParamObject)
	assert.False(t, info.HasErrorReturn)
	require.Len(t, info.Parameters, 1)
	assert.Equal(t, reflect.TypeFor[string](), info.Parameters[0].Type)
	assert.Equal(t, reflect.TypeFor[*Database](), info.ResultType)
	assert.True(t, info.Value.IsValid())
}

func TestAnalyzer_ConstructorWithMultipleParams(t *testing.T) {
	analyzer := reflection.New()

	info, err := analyzer.Analyze(NewUserService)
	require.NoError(t, err)

	require.Len(t, info.Parameters, 2)
	assert.Equal(t, reflect.TypeFor[*Database](), info.Parameters[0].Type)
	assert.Equal(t, reflect.TypeFor[Logger](), info.Parameters[1].Type)
	assert.Equal(t, 1, info.Parameters[1].Index)
}

func TestAnalyzer_ConstructorWithError(t *testing.T) {
	analyzer := reflection.New()

	info, err := analyzer.Analyze(NewUserServiceWithError)
	require.NoError(t, err)

	assert.True(t, info.HasErrorReturn)
	assert.Equal(t, reflect.TypeFor[*UserService](), info.ResultType)
}

func TestAnalyzer_ParamObject(t *testing.T) {
	analyzer := reflection.New()

	info, err := analyzer.Analyze(NewServiceWithParams)
	require.NoError(t, err)

	assert.True(t, info.IsParamObject)
	require.Len(t, info.Parameters, 3)

	byName := make(map[string]reflection.ParameterInfo)
	for _, p := range info.Parameters {
		byName[p.Name] = p
	}

	assert.False(t, byName["Database"].Optional)
	assert.True(t, byName["Logger"].Optional)
	assert.Equal(t, "cache", byName["Cache"].Key)
	assert.NotContains(t, byName, "Skipped")
	assert.NotContains(t, byName, "hidden")
}

func TestAnalyzer_InvalidConstructors(t *testing.T) {
	analyzer := reflection.New()

	tests := []struct {
		name string
		fn   any
		want error
	}{
		{"nil", nil, reflection.ErrNilConstructor},
		{"typed nil func", (func() int)(nil), reflection.ErrNilConstructor},
		{"not a func", 42, reflection.ErrNotFunc},
		{"no results", func() {}, reflection.ErrNoResult},
		{"only error", func() error { return nil }, reflection.ErrNoResult},
		{"two results", func() (int, string) { return 0, "" }, reflection.ErrMultipleResults},
		{"two results and error", func() (int, string, error) { return 0, "", nil }, reflection.ErrMultipleResults},
		{"variadic", func(xs ...int) int { return len(xs) }, reflection.ErrVariadic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := analyzer.Analyze(tt.fn)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAnalyzer_ClosuresShareSignature(t *testing.T) {
	analyzer := reflection.New()

	first := func() *Database { return &Database{ConnectionString: "a"} }
	second := func() *Database { return &Database{ConnectionString: "b"} }

	a, err := analyzer.Analyze(first)
	require.NoError(t, err)
	b, err := analyzer.Analyze(second)
	require.NoError(t, err)

	assert.Equal(t, 1, analyzer.CacheSize())

	// Each info must call its own closure.
	gotA := a.Value.Call(nil)[0].Interface().(*Database)
	gotB := b.Value.Call(nil)[0].Interface().(*Database)
	assert.Equal(t, "a", gotA.ConnectionString)
	assert.Equal(t, "b", gotB.ConnectionString)
}

func TestAnalyzer_Injectable(t *testing.T) {
	analyzer := reflection.New()

	t.Run("collects tagged fields", func(t *testing.T) {
		info, err := analyzer.Injectable(reflect.TypeFor[*Handler]())
		require.NoError(t, err)

		assert.Equal(t, reflect.TypeFor[Handler](), info.Type)
		require.Len(t, info.Fields, 3)
		assert.Equal(t, "DB", info.Fields[0].Name)
		assert.Equal(t, "", info.Fields[0].Key)
		assert.Equal(t, "replica", info.Fields[1].Key)
		assert.True(t, info.Fields[2].Optional)
	})

	t.Run("pointer and value share an entry", func(t *testing.T) {
		a, err := analyzer.Injectable(reflect.TypeFor[Handler]())
		require.NoError(t, err)
		b, err := analyzer.Injectable(reflect.TypeFor[*Handler]())
		require.NoError(t, err)
		assert.Same(t, a, b)
	})

	t.Run("rejects unexported tagged fields", func(t *testing.T) {
		_, err := analyzer.Injectable(reflect.TypeFor[badHandler]())
		assert.ErrorIs(t, err, reflection.ErrUnexportedInject)
	})

	t.Run("rejects non-struct types", func(t *testing.T) {
		_, err := analyzer.Injectable(reflect.TypeFor[int]())
		assert.ErrorIs(t, err, reflection.ErrNotStruct)
	})
}

func TestAnalyzer_FactoryStruct(t *testing.T) {
	analyzer := reflection.New()

	info, err := analyzer.Factory(reflect.TypeFor[*WidgetFactory]())
	require.NoError(t, err)

	assert.False(t, info.IsFunc)
	require.Len(t, info.Methods, 4)

	create := info.Methods[0]
	assert.Equal(t, "Create", create.Name)
	assert.True(t, create.HasErrorReturn)
	assert.Equal(t, reflect.TypeFor[*UserService](), create.Result)
	assert.Empty(t, create.Args)

	createFor := info.Methods[1]
	assert.Equal(t, []reflect.Type{reflect.TypeFor[*Database]()}, createFor.Args)

	createKey := info.Methods[2]
	assert.True(t, createKey.Keyed)
	assert.Equal(t, []reflect.Type{reflect.TypeFor[*Database]()}, createKey.Args)

	createAll := info.Methods[3]
	assert.True(t, createAll.All)
	assert.Equal(t, reflect.TypeFor[Logger](), createAll.Result)
}

func TestAnalyzer_FactoryFunc(t *testing.T) {
	analyzer := reflection.New()

	info, err := analyzer.Factory(reflect.TypeFor[func(*Database) *UserService]())
	require.NoError(t, err)

	assert.True(t, info.IsFunc)
	require.Len(t, info.Methods, 1)
	assert.Equal(t, -1, info.Methods[0].Index)
	assert.Equal(t, reflect.TypeFor[*UserService](), info.Methods[0].Result)
}

func TestAnalyzer_KeyedSliceFactory(t *testing.T) {
	type loggers struct {
		ByKey func(key string) ([]Logger, error) `ioc:"key"`
	}

	info, err := reflection.New().Factory(reflect.TypeFor[loggers]())
	require.NoError(t, err)

	m := info.Methods[0]
	assert.True(t, m.Keyed)
	assert.True(t, m.All)
	assert.Empty(t, m.Args)
}

func TestAnalyzer_InvalidFactories(t *testing.T) {
	analyzer := reflection.New()

	type noMethods struct{ x int }
	type nonFunc struct{ Name string }
	type noResult struct{ Make func() }
	type badKey struct {
		Make func(id int) *Database `ioc:"key"`
	}
	type dupArgs struct {
		Make func(a, b string) *Database
	}
	type sliceArgs struct {
		MakeAll func(db *Database) []Logger
	}
	type keyedSliceArgs struct {
		MakeAll func(key string, db *Database) []Logger `ioc:"key"`
	}

	tests := []struct {
		name string
		typ  reflect.Type
	}{
		{"scalar", reflect.TypeFor[int]()},
		{"no methods", reflect.TypeFor[noMethods]()},
		{"non-func field", reflect.TypeFor[nonFunc]()},
		{"no result", reflect.TypeFor[noResult]()},
		{"key not string", reflect.TypeFor[badKey]()},
		{"duplicate argument types", reflect.TypeFor[dupArgs]()},
		{"slice result with arguments", reflect.TypeFor[sliceArgs]()},
		{"keyed slice result with arguments", reflect.TypeFor[keyedSliceArgs]()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := analyzer.Factory(tt.typ)
			assert.ErrorIs(t, err, reflection.ErrNotFactory)
		})
	}
}

func TestAnalyzer_Concurrent(t *testing.T) {
	analyzer := reflection.New()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := analyzer.Analyze(NewUserService)
			assert.NoError(t, err)
			_, err = analyzer.Injectable(reflect.TypeFor[Handler]())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, analyzer.CacheSize())

	analyzer.Clear()
	assert.Equal(t, 0, analyzer.CacheSize())
}
