// Package psi implements the Program Specific Information section layer of
// MPEG-2 transport streams: the binary section codec with CRC-32/MPEG-2,
// descriptor loops, multi-section tables, and the Program Map Table codec
// with its stream classification predicates.
//
// [Section] holds one complete section in wire form. [Table] groups the
// sections of one table instance. [Assembler] reconstructs sections from the
// packets of a PID and [Packetizer] does the reverse, turning a table into a
// cyclic packet stream. [PMT] gives the Program Map Table a structured form.
package psi
