package main

import (
	"github.com/flxmf365/hospital-booking-bot/cmd/bookingbot/commands"
	"github.com/flxmf365/hospital-booking-bot/lib/util/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
