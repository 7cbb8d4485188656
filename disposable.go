package ioc

// Disposable is implemented by services that hold resources. Instances
// cached by a container (Singleton and PerContainer) and instance bindings
// are closed when the container that owns them is closed. It has the same
// method set as io.Closer.
//
// Example:
//
//	type DatabaseConnection struct {
//	    conn *sql.DB
//	}
//
//	func (dc *DatabaseConnection) Close() error {
//	    return dc.conn.Close()
//	}
type Disposable interface {
	Close() error
}

// InjectionAware is implemented by services that need to run setup once
// their inject-tagged fields have been populated.
type InjectionAware interface {
	ParametersInjected()
}
