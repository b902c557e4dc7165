// Package modules lists the library descriptors compiled into the seedgrid
// binary.
package modules

import (
	"github.com/vk/seedgrid/internal/registry"
	"github.com/vk/seedgrid/modules/cjson"
	"github.com/vk/seedgrid/modules/lcms"
	"github.com/vk/seedgrid/modules/libpcap"
	"github.com/vk/seedgrid/modules/libpng"
	"github.com/vk/seedgrid/modules/re2"
	"github.com/vk/seedgrid/modules/sqlite3"
	"github.com/vk/seedgrid/modules/zlib"
)

// All returns a fresh instance of every built-in library module.
func All() []registry.Module {
	return []registry.Module{
		&cjson.Module{},
		&lcms.Module{},
		&libpcap.Module{},
		&libpng.Module{},
		&re2.Module{},
		&sqlite3.Module{},
		&zlib.Module{},
	}
}
