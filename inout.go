package ioc

import "github.com/junioryono/ioc/internal/reflection"

// In can be embedded into a struct to mark it as a parameter object.
// A constructor taking a single parameter object has each exported field
// resolved individually. Fields accept the tags:
//
//	name:"key"        resolve the registration filed under key
//	optional:"true"   use the zero value when nothing is registered
//	inject:"-"        skip the field
//
// Example:
//
//	type HandlerParams struct {
//	    ioc.In
//
//	    Store   Store
//	    Cache   Cache    `name:"redis"`
//	    Metrics Metrics  `optional:"true"`
//	    Plugins []Plugin
//	}
//
//	func NewHandler(p HandlerParams) *Handler {
//	    return &Handler{store: p.Store, cache: p.Cache}
//	}
type In = reflection.In
