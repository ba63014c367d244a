package difficultymanager

import (
	"github.com/xepnet/xepd/infrastructure/logger"
)

var log = logger.RegisterSubSystem("DIFF")
