package handlers

import "PPGateway/service/chat"

// Hooks are the extension points of CHAT and SIGNED; nil hooks are skipped.
type Hooks struct {
	OnChat   chat.MessageHook
	OnSigned chat.MessageHook
}

// RegisterDefaults installs the handlers for every known action.
func RegisterDefaults(d *chat.Dispatcher, hooks Hooks) {
	d.Register(NewConnectHandler())
	d.Register(NewChatHandler(hooks.OnChat))
	d.Register(NewSignedHandler(hooks.OnSigned))
	d.Register(NewHeartbeatHandler())
}
