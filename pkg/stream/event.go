package stream

/*
Event is the single normalized unit flowing from the decoders and the swarm
runner to a UI consumer.  Done marks completion of the stream and may carry
an empty chunk; consumers must stop expecting further events after it.
*/
type Event struct {
	Chunk string `json:"chunk"`
	Done  bool   `json:"done"`
}
