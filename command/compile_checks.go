package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[StartAuthorizationMessage]     = (*StartAuthorizationCommand)(nil)
	_ gocmd.Commander[CompleteCallbackMessage]       = (*CompleteCallbackCommand)(nil)
	_ gocmd.Commander[SaveConnectionMessage]         = (*SaveConnectionCommand)(nil)
	_ gocmd.Commander[DeleteConnectionMessage]       = (*DeleteConnectionCommand)(nil)
	_ gocmd.Commander[AddGrantMessage]               = (*AddGrantCommand)(nil)
	_ gocmd.Commander[RemoveGrantMessage]            = (*RemoveGrantCommand)(nil)
	_ gocmd.Commander[RefreshConnectionMessage]      = (*RefreshConnectionCommand)(nil)
	_ gocmd.Commander[ReportConnectionErrorMessage]  = (*ReportConnectionErrorCommand)(nil)
	_ gocmd.Commander[ReportConnectionTestedMessage] = (*ReportConnectionTestedCommand)(nil)
)
