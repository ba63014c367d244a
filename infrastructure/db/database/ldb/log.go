package ldb

import "github.com/xepnet/xepd/infrastructure/logger"

var log = logger.RegisterSubSystem("LVDB")
