package model

// Callback 调用方必须实现的回调
type Callback interface {
	OnSuccess(data string)
	OnError(err string)
}

// Closer 接收用户关闭流程的通知
type Closer interface {
	OnClose(reason string)
}

// Exiter 旧版关闭通知，保留兼容
//
// Deprecated: 使用 Closer.
type Exiter interface {
	OnExit(reason string)
}

// EventReceiver 接收网页发出的非终结性事件
type EventReceiver interface {
	OnEvent(event string)
}

// LoadReceiver 接收页面加载完成通知
type LoadReceiver interface {
	OnLoad(data string)
}

// CallbackFuncs 以函数字段实现全部回调，未设置的字段忽略
type CallbackFuncs struct {
	Success func(data string)
	Close   func(reason string)
	Exit    func(reason string)
	Error   func(err string)
	Event   func(event string)
	Load    func(data string)
}

func (f CallbackFuncs) OnSuccess(data string) {
	if f.Success != nil {
		f.Success(data)
	}
}

func (f CallbackFuncs) OnClose(reason string) {
	if f.Close != nil {
		f.Close(reason)
	}
}

func (f CallbackFuncs) OnExit(reason string) {
	if f.Exit != nil {
		f.Exit(reason)
	}
}

func (f CallbackFuncs) OnError(err string) {
	if f.Error != nil {
		f.Error(err)
	}
}

func (f CallbackFuncs) OnEvent(event string) {
	if f.Event != nil {
		f.Event(event)
	}
}

func (f CallbackFuncs) OnLoad(data string) {
	if f.Load != nil {
		f.Load(data)
	}
}
