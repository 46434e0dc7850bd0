package trace

import (
	"github.com/offloadlab/wiznet/pool"
	"github.com/offloadlab/wiznet/sched"
	"github.com/offloadlab/wiznet/spi"
)

// A Transfer is one recorded pipeline stage of one bus command.
type Transfer struct {
	Seq     int64
	TimeNS  int64
	Stage   string
	Socket  int
	Addr    uint16
	Control uint8
	Length  int
	Write   bool
}

// Pipeline stage names. A command is submitted when the driver queues
// it, issued when the adaptor takes it to the bus, and completed when
// its response arrives.
const (
	StageSubmit   = "submit"
	StageIssue    = "issue"
	StageComplete = "complete"
)

// A Tracer hooks onto an adaptor's command and response queues and
// records every transfer stage into a Recorder.
type Tracer struct {
	timeTeller sched.TimeTeller
	recorder   Recorder
	tableName  string

	commands *pool.Queue
	seq      int64
}

// NewTracer creates a tracer writing to the given table.
func NewTracer(
	timeTeller sched.TimeTeller,
	recorder Recorder,
	tableName string,
) *Tracer {
	t := &Tracer{
		timeTeller: timeTeller,
		recorder:   recorder,
		tableName:  tableName,
	}

	recorder.CreateTable(tableName, Transfer{})

	return t
}

// Attach registers the tracer on the adaptor's pipeline queues.
func (t *Tracer) Attach(a *spi.Adaptor) {
	t.commands = a.Commands()
	a.Commands().AcceptHook(t)
	a.Responses().AcceptHook(t)
}

// Func records a transfer stage. Responses popped by the driver are
// not recorded; completion is the moment the response arrives.
func (t *Tracer) Func(ctx sched.HookCtx) {
	cmd, ok := ctx.Item.(spi.Command)
	if !ok {
		return
	}

	fromCommands := ctx.Domain == sched.Hookable(t.commands)

	var stage string
	switch {
	case fromCommands && ctx.Pos == pool.HookPosQueuePush:
		stage = StageSubmit
	case fromCommands && ctx.Pos == pool.HookPosQueuePop:
		stage = StageIssue
	case !fromCommands && ctx.Pos == pool.HookPosQueuePush:
		stage = StageComplete
	default:
		return
	}

	socket := -1
	if !spi.IsCommonBlock(cmd.Control) {
		socket = int(spi.SocketID(cmd.Control))
	}

	length := int(cmd.Size)
	if cmd.Data.Len() > 0 {
		length = cmd.Data.Len()
	}

	t.seq++
	t.recorder.InsertData(t.tableName, Transfer{
		Seq:     t.seq,
		TimeNS:  t.timeTeller.CurrentTime().Nanoseconds(),
		Stage:   stage,
		Socket:  socket,
		Addr:    cmd.Addr,
		Control: cmd.Control,
		Length:  length,
		Write:   cmd.IsWrite(),
	})
}
